package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/marketpulse/deepsignal/config"
)

// MacroTool pulls macro indicator readings (DXY, US10Y, CPI prints and the
// like) from a configured indicator API.
type MacroTool struct {
	cfg  config.MacroToolConfig
	http *HTTPClient
}

func NewMacroTool(cfg config.MacroToolConfig, httpc *HTTPClient) *MacroTool {
	return &MacroTool{cfg: cfg, http: httpc}
}

func (t *MacroTool) Name() string { return NameMacro }

func (t *MacroTool) Invoke(ctx context.Context, req Request) (Result, error) {
	indicators := req.MacroIndicators
	if len(indicators) == 0 {
		indicators = []string{"DXY", "US10Y"}
	}

	headers := map[string]string{}
	if t.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + t.cfg.APIKey
	}

	readings := make(map[string]interface{}, len(indicators))
	failures := 0
	anomaly := false
	for _, name := range indicators {
		u := fmt.Sprintf("%s/indicators/%s/latest", strings.TrimRight(t.cfg.Endpoint, "/"), url.PathEscape(name))
		var raw struct {
			Value     float64 `json:"value"`
			ChangePct float64 `json:"change_pct"`
			AsOf      string  `json:"as_of"`
			Anomalous bool    `json:"anomalous"`
		}
		if err := t.http.DoJSON(ctx, "GET", u, headers, nil, &raw); err != nil {
			failures++
			readings[name] = map[string]interface{}{"error": err.Error()}
			continue
		}
		if raw.Anomalous {
			anomaly = true
		}
		readings[name] = map[string]interface{}{
			"value":      raw.Value,
			"change_pct": raw.ChangePct,
			"as_of":      raw.AsOf,
		}
	}

	if failures == len(indicators) {
		err := fmt.Errorf("macro: all %d indicator lookups failed", failures)
		return Result{Error: err.Error()}, err
	}

	confidence := 0.8
	if failures > 0 {
		confidence = 0.5
	}
	return Result{
		Success: true,
		Data: map[string]interface{}{
			"indicators": readings,
			"failed":     failures,
		},
		Confidence: confidence,
		Triggered:  anomaly,
	}, nil
}
