package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/marketpulse/deepsignal/config"
	"github.com/marketpulse/deepsignal/internal/memory"
	"github.com/marketpulse/deepsignal/internal/quota"
	"github.com/marketpulse/deepsignal/internal/signal"
	"github.com/marketpulse/deepsignal/internal/store"
	"github.com/marketpulse/deepsignal/internal/telemetry"
	"github.com/marketpulse/deepsignal/internal/tools"
)

// BuildGraph constructs the deep-analysis graph from config: planner backend
// with construction fallback, the configured tool registry, daily quota and
// telemetry. Historical precedents are wired separately via WithPrecedents.
func BuildGraph(cfg *config.Config) (*signal.Graph, error) {
	logger := log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)

	planner, err := signal.NewPlannerWithFallback(cfg.LLM.Backend, cfg.LLM.FallbackBackend, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry(cfg.Tools, logger)
	tracker := quota.NewTracker(cfg.Analysis.DailyToolBudget)

	var tel *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		tel = telemetry.New()
	}

	return signal.NewGraph(cfg.Analysis, planner, registry, nil, tracker, tel), nil
}

// BuildGraphWithStore additionally wires stored signals in as historical
// precedents for context gathering.
func BuildGraphWithStore(cfg *config.Config, st store.SignalStore) (*signal.Graph, error) {
	logger := log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)

	planner, err := signal.NewPlannerWithFallback(cfg.LLM.Backend, cfg.LLM.FallbackBackend, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry(cfg.Tools, logger)
	tracker := quota.NewTracker(cfg.Analysis.DailyToolBudget)

	var tel *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		tel = telemetry.New()
	}

	mem := precedentFetcher(st, cfg.Analysis.MemoryLimit)
	return signal.NewGraph(cfg.Analysis, planner, registry, mem, tracker, tel), nil
}

// precedentFetcher adapts stored signals into memory entries. Similarity is a
// coarse asset-match heuristic; a dedicated vector index is out of scope.
func precedentFetcher(st store.SignalStore, limit int) memory.Fetcher {
	return memory.FetcherFunc(func(ctx context.Context, keywords, assetCodes []string) ([]memory.Entry, error) {
		asset := ""
		if len(assetCodes) > 0 {
			asset = assetCodes[0]
		}
		recs, err := st.RecentSignals(ctx, asset, limit)
		if err != nil {
			return nil, err
		}
		entries := make([]memory.Entry, 0, len(recs))
		for _, rec := range recs {
			var final signal.FinalSignal
			if err := json.Unmarshal(rec.Signal, &final); err != nil {
				continue
			}
			similarity := 0.6
			if asset != "" && rec.Asset == asset {
				similarity = 0.85
			}
			entries = append(entries, memory.Entry{
				Summary:    final.Summary,
				Action:     final.Action,
				Confidence: final.Confidence,
				Similarity: similarity,
				Assets:     []string{rec.Asset},
				CreatedAt:  rec.CreatedAt,
			})
		}
		return entries, nil
	})
}
