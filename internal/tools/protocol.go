package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/marketpulse/deepsignal/config"
)

// ProtocolTool queries a DefiLlama-compatible API for protocol TVL. A steep
// TVL drawdown against the stored series is the anomaly condition.
type ProtocolTool struct {
	cfg  config.ProtocolToolConfig
	http *HTTPClient
}

func NewProtocolTool(cfg config.ProtocolToolConfig, httpc *HTTPClient) *ProtocolTool {
	return &ProtocolTool{cfg: cfg, http: httpc}
}

func (t *ProtocolTool) Name() string { return NameProtocol }

func (t *ProtocolTool) Invoke(ctx context.Context, req Request) (Result, error) {
	if len(req.ProtocolSlugs) == 0 {
		return Result{Error: "no protocol slugs"}, fmt.Errorf("protocol: no slugs")
	}

	protocols := make(map[string]interface{}, len(req.ProtocolSlugs))
	failures := 0
	triggered := false
	for _, slug := range req.ProtocolSlugs {
		u := fmt.Sprintf("%s/protocol/%s", strings.TrimRight(t.cfg.Endpoint, "/"), url.PathEscape(slug))
		var raw struct {
			Name string `json:"name"`
			TVL  []struct {
				Date        int64   `json:"date"`
				TotalLiquid float64 `json:"totalLiquidityUSD"`
			} `json:"tvl"`
		}
		if err := t.http.DoJSON(ctx, "GET", u, nil, nil, &raw); err != nil {
			failures++
			protocols[slug] = map[string]interface{}{"error": err.Error()}
			continue
		}
		entry := map[string]interface{}{"name": raw.Name}
		if n := len(raw.TVL); n > 0 {
			latest := raw.TVL[n-1].TotalLiquid
			entry["tvl_usd"] = latest
			if n > 1 && raw.TVL[n-2].TotalLiquid > 0 {
				prev := raw.TVL[n-2].TotalLiquid
				changePct := (latest - prev) / prev * 100
				entry["tvl_change_pct"] = changePct
				if changePct < -20 {
					triggered = true
				}
			}
		}
		protocols[slug] = entry
	}

	if failures == len(req.ProtocolSlugs) {
		err := fmt.Errorf("protocol: all %d protocol lookups failed", failures)
		return Result{Error: err.Error()}, err
	}

	confidence := 0.8
	if failures > 0 {
		confidence = 0.5
	}
	return Result{
		Success: true,
		Data: map[string]interface{}{
			"protocols": protocols,
			"failed":    failures,
		},
		Confidence: confidence,
		Triggered:  triggered,
	}, nil
}
