package signal

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/marketpulse/deepsignal/config"
	"github.com/marketpulse/deepsignal/internal/memory"
	"github.com/marketpulse/deepsignal/internal/quota"
	"github.com/marketpulse/deepsignal/internal/telemetry"
	"github.com/marketpulse/deepsignal/internal/tools"
)

// Graph drives one event through context gathering, the planner/executor
// loop, and terminal synthesis. A single Graph serves many events; all
// per-event state lives in State.
type Graph struct {
	planner     Planner
	tools       map[string]tools.Tool
	memory      memory.Fetcher
	quota       *quota.Tracker
	telemetry   *telemetry.Telemetry
	logger      *log.Logger
	cfg         config.AnalysisConfig
	neverSearch map[string]bool
	forceSearch map[string]bool
}

// NewGraph wires the orchestration graph. memory, tracker and telemetry may
// be nil; the graph degrades gracefully without them.
func NewGraph(cfg config.AnalysisConfig, planner Planner, registry map[string]tools.Tool, mem memory.Fetcher, tracker *quota.Tracker, tel *telemetry.Telemetry) *Graph {
	return &Graph{
		planner:     planner,
		tools:       registry,
		memory:      mem,
		quota:       tracker,
		telemetry:   tel,
		logger:      log.New(log.Writer(), "[GRAPH] ", log.LstdFlags),
		cfg:         cfg,
		neverSearch: toSet(cfg.NeverSearch),
		forceSearch: toSet(cfg.ForceSearch),
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

// Run executes the full deep analysis for one event and returns the
// synthesized signal. The event payload and preliminary analysis are never
// mutated. Synthesis failures propagate; the graph does not fabricate a
// signal.
func (g *Graph) Run(ctx context.Context, payload EventPayload, prelim PreliminaryAnalysis) (*FinalSignal, error) {
	start := time.Now()
	state := NewState(payload, prelim, g.cfg.MaxToolCalls)

	g.contextGather(ctx, state)

	for state.ToolCallCount < state.MaxToolCalls {
		plan := g.plan(ctx, state)
		if len(plan.Tools) == 0 {
			g.logger.Printf("event %s: planner requested no tools after turn %d, moving to synthesis",
				payload.ID, state.ToolCallCount)
			break
		}
		g.executeTurn(ctx, state, plan)
	}

	final, err := g.synthesize(ctx, state)
	g.record(state, start, err)
	if err != nil {
		return nil, err
	}
	return final, nil
}

// contextGather fetches historical precedents. Memory is advisory: a fetch
// failure is logged and analysis proceeds without it.
func (g *Graph) contextGather(ctx context.Context, state *State) {
	if g.memory == nil {
		return
	}
	keywords := state.Payload.Keywords
	if len(keywords) == 0 && state.Preliminary.EventType != "" {
		keywords = []string{state.Preliminary.EventType}
	}
	var assets []string
	if state.Preliminary.Asset != "" {
		assets = []string{state.Preliminary.Asset}
	}
	entries, err := g.memory.Fetch(ctx, keywords, assets)
	if err != nil {
		g.logger.Printf("event %s: memory fetch failed, continuing without precedents: %v", state.Payload.ID, err)
		return
	}
	state.MemoryEvidence = memory.FormatEntries(entries, g.cfg.MemoryLimit)
}

// plan produces the tool decision for the current turn, applying the
// deterministic category rules before the backend call:
//
//  1. never-search event types get an empty plan with no backend round trip,
//     routing straight to synthesis;
//  2. force-search event types get a synthesized search plan on the first
//     turn, again without the backend;
//  3. once successful search evidence exists the plan is empty, routing to
//     synthesis without consulting the backend again.
//
// A planner backend failure degrades to an empty plan, routing to synthesis
// with whatever evidence exists.
func (g *Graph) plan(ctx context.Context, state *State) ToolPlan {
	et := state.Preliminary.EventType

	if g.neverSearch[et] {
		g.logger.Printf("event %s: event type %q is exempt from deep tool analysis", state.Payload.ID, et)
		return ToolPlan{}
	}

	if state.ToolCallCount == 0 && g.forceSearch[et] {
		kw := synthesizeSearchKeywords(state)
		g.logger.Printf("event %s: event type %q forces search, keywords %q", state.Payload.ID, et, kw)
		return ToolPlan{
			Tools:          []string{tools.NameSearch},
			SearchKeywords: kw,
			Reason:         "event type requires source confirmation",
			Confidence:     1.0,
		}
	}

	if res, ok := state.Evidence[tools.NameSearch]; ok && res.Success {
		g.logger.Printf("event %s: search evidence confirmed, routing to synthesis", state.Payload.ID)
		return ToolPlan{}
	}

	available := g.availableTools()
	plan, err := g.planner.Plan(ctx, state, available)
	if err != nil {
		g.logger.Printf("event %s: planner failed on turn %d, degrading to synthesis: %v",
			state.Payload.ID, state.ToolCallCount, err)
		if g.telemetry != nil {
			g.telemetry.RecordPlannerError(errorKind(err))
		}
		return ToolPlan{}
	}
	return plan
}

// executeTurn runs one executor visit: the turn counter advances exactly
// once, quota is charged once, and all permitted tools run concurrently.
// Individual tool failures are absorbed into the evidence map.
func (g *Graph) executeTurn(ctx context.Context, state *State, plan ToolPlan) {
	state.ToolCallCount++
	state.NextTools = plan.Tools
	if plan.SearchKeywords != "" {
		state.SearchKeywords = plan.SearchKeywords
	}
	if g.telemetry != nil {
		g.telemetry.RecordTurn()
	}

	if g.quota != nil && !g.quota.Allow() {
		g.logger.Printf("event %s: daily tool budget exhausted, turn %d runs no tools",
			state.Payload.ID, state.ToolCallCount)
		if g.telemetry != nil {
			g.telemetry.RecordQuotaSkip()
		}
		return
	}

	req := g.buildRequest(state, plan)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, name := range plan.Tools {
		if !tools.KnownName(name) {
			g.logger.Printf("event %s: planner requested unknown tool %q, skipping", state.Payload.ID, name)
			continue
		}
		tool, ok := g.tools[name]
		if !ok {
			g.logger.Printf("event %s: tool %q not configured, skipping", state.Payload.ID, name)
			continue
		}
		wg.Add(1)
		go func(name string, tool tools.Tool) {
			defer wg.Done()
			res, err := tool.Invoke(ctx, req)
			if err != nil {
				res = tools.Result{Success: false, Error: err.Error()}
			}
			mu.Lock()
			state.Evidence[name] = res
			mu.Unlock()
			status := "success"
			if !res.Success {
				status = "failure"
			}
			if g.telemetry != nil {
				g.telemetry.RecordToolCall(name, status)
			}
			g.logger.Printf("event %s: tool %s -> success=%v triggered=%v",
				state.Payload.ID, name, res.Success, res.Triggered)
		}(name, tool)
	}
	wg.Wait()
}

func (g *Graph) buildRequest(state *State, plan ToolPlan) tools.Request {
	keywords := plan.SearchKeywords
	if keywords == "" {
		keywords = synthesizeSearchKeywords(state)
	}
	onchain := plan.OnchainAssets
	if len(onchain) == 0 && state.Preliminary.Asset != "" {
		onchain = []string{state.Preliminary.Asset}
	}
	return tools.Request{
		Keywords:        keywords,
		Asset:           state.Preliminary.Asset,
		MacroIndicators: plan.MacroIndicators,
		OnchainAssets:   onchain,
		ProtocolSlugs:   plan.ProtocolSlugs,
	}
}

// synthesize asks the backend for the final signal and enforces the
// deterministic invariants: confidence clamped to [0,1], confidence_low
// flagged below the threshold, classification fields backfilled from the
// preliminary analysis when the backend omits them.
func (g *Graph) synthesize(ctx context.Context, state *State) (*FinalSignal, error) {
	raw, err := g.planner.Synthesize(ctx, state)
	if err != nil {
		if g.telemetry != nil {
			g.telemetry.RecordSynthesisFailure()
		}
		return nil, fmt.Errorf("synthesizing signal for event %s: %w", state.Payload.ID, err)
	}

	var final FinalSignal
	if err := decodeJSON(backendName(g.planner), raw, &final); err != nil {
		if g.telemetry != nil {
			g.telemetry.RecordSynthesisFailure()
		}
		return nil, fmt.Errorf("decoding signal for event %s: %w", state.Payload.ID, err)
	}

	if final.Confidence < 0 {
		final.Confidence = 0
	}
	if final.Confidence > 1 {
		final.Confidence = 1
	}
	if final.Confidence < confidenceLowThreshold && !final.HasRiskFlag(RiskConfidenceLow) {
		final.RiskFlags = append(final.RiskFlags, RiskConfidenceLow)
	}
	if final.RiskFlags == nil {
		final.RiskFlags = []string{}
	}
	if final.EventType == "" {
		final.EventType = state.Preliminary.EventType
	}
	if final.Asset == "" {
		final.Asset = state.Preliminary.Asset
	}

	state.Final = &final
	return &final, nil
}

func (g *Graph) record(state *State, start time.Time, err error) {
	if g.telemetry == nil {
		return
	}
	used := make([]string, 0, len(state.Evidence))
	for name := range state.Evidence {
		used = append(used, name)
	}
	sort.Strings(used)
	ev := telemetry.ProcessingEvent{
		EventID:   state.Payload.ID,
		EventType: state.Preliminary.EventType,
		Asset:     state.Preliminary.Asset,
		Turns:     state.ToolCallCount,
		ToolsUsed: used,
		Success:   err == nil,
		StartTime: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	g.telemetry.RecordProcessingEvent(ev)
}

func (g *Graph) availableTools() []string {
	names := make([]string, 0, len(g.tools))
	for name := range g.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// errorKind labels an absorbed planner error for metrics.
func errorKind(err error) string {
	switch {
	case IsTimeout(err):
		return "timeout"
	case IsConfiguration(err):
		return "configuration"
	default:
		return "planning"
	}
}

// backendName recovers a human-readable backend label for error reporting.
func backendName(p Planner) string {
	type named interface{ Backend() string }
	if n, ok := p.(named); ok {
		return n.Backend()
	}
	return "planner"
}
