package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/marketpulse/deepsignal/config"
)

// OnchainTool reports exchange netflow and whale transfer activity per asset
// from a configured on-chain analytics API.
type OnchainTool struct {
	cfg  config.OnchainToolConfig
	http *HTTPClient
}

func NewOnchainTool(cfg config.OnchainToolConfig, httpc *HTTPClient) *OnchainTool {
	return &OnchainTool{cfg: cfg, http: httpc}
}

func (t *OnchainTool) Name() string { return NameOnchain }

func (t *OnchainTool) Invoke(ctx context.Context, req Request) (Result, error) {
	assets := req.OnchainAssets
	if len(assets) == 0 && req.Asset != "" {
		assets = []string{req.Asset}
	}
	if len(assets) == 0 {
		return Result{Error: "no assets for onchain lookup"}, fmt.Errorf("onchain: no assets")
	}

	headers := map[string]string{}
	if t.cfg.APIKey != "" {
		headers["X-API-KEY"] = t.cfg.APIKey
	}

	flows := make(map[string]interface{}, len(assets))
	failures := 0
	triggered := false
	for _, asset := range assets {
		u := fmt.Sprintf("%s/flows/%s", strings.TrimRight(t.cfg.Endpoint, "/"), url.PathEscape(strings.ToUpper(asset)))
		var raw struct {
			ExchangeNetflowUSD float64 `json:"exchange_netflow_usd"`
			WhaleTxCount24H    int     `json:"whale_tx_count_24h"`
			LargeOutflow       bool    `json:"large_outflow"`
		}
		if err := t.http.DoJSON(ctx, "GET", u, headers, nil, &raw); err != nil {
			failures++
			flows[strings.ToUpper(asset)] = map[string]interface{}{"error": err.Error()}
			continue
		}
		if raw.LargeOutflow || raw.WhaleTxCount24H >= 10 {
			triggered = true
		}
		flows[strings.ToUpper(asset)] = map[string]interface{}{
			"exchange_netflow_usd": raw.ExchangeNetflowUSD,
			"whale_tx_count_24h":   raw.WhaleTxCount24H,
			"large_outflow":        raw.LargeOutflow,
		}
	}

	if failures == len(assets) {
		err := fmt.Errorf("onchain: all %d asset lookups failed", failures)
		return Result{Error: err.Error()}, err
	}

	confidence := 0.75
	if failures > 0 {
		confidence = 0.5
	}
	return Result{
		Success: true,
		Data: map[string]interface{}{
			"flows":  flows,
			"failed": failures,
		},
		Confidence: confidence,
		Triggered:  triggered,
	}, nil
}
