package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/marketpulse/deepsignal/config"
	"github.com/shopspring/decimal"
)

const defaultPriceEndpoint = "https://api.coingecko.com/api/v3"

// depegThreshold is the absolute deviation from $1.00 at which a stablecoin
// quote counts as a depeg.
var depegThreshold = decimal.RequireFromString("0.005")

var stablecoins = map[string]string{
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"DAI":   "dai",
	"FDUSD": "first-digital-usd",
	"TUSD":  "true-usd",
}

var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"AVAX": "avalanche-2",
}

// PriceTool fetches a spot quote plus 24h change and flags stablecoin depegs
// and outsized moves. Decimal arithmetic keeps peg deviation exact.
type PriceTool struct {
	cfg  config.PriceToolConfig
	http *HTTPClient
}

func NewPriceTool(cfg config.PriceToolConfig, httpc *HTTPClient) *PriceTool {
	return &PriceTool{cfg: cfg, http: httpc}
}

func (t *PriceTool) Name() string { return NamePrice }

func (t *PriceTool) Invoke(ctx context.Context, req Request) (Result, error) {
	asset := strings.ToUpper(strings.TrimSpace(req.Asset))
	if asset == "" {
		return Result{Error: "no asset for price lookup"}, fmt.Errorf("price: no asset")
	}
	id, stable := stablecoins[asset]
	if !stable {
		var ok bool
		id, ok = coinIDs[asset]
		if !ok {
			id = strings.ToLower(asset)
		}
	}

	endpoint := t.cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultPriceEndpoint
	}
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true", endpoint, id)
	headers := map[string]string{}
	if t.cfg.APIKey != "" {
		headers["x-cg-demo-api-key"] = t.cfg.APIKey
	}

	var raw map[string]struct {
		USD         decimal.Decimal `json:"usd"`
		USD24HRChg  decimal.Decimal `json:"usd_24h_change"`
	}
	if err := t.http.DoJSON(ctx, "GET", url, headers, nil, &raw); err != nil {
		return Result{Error: err.Error()}, fmt.Errorf("price: %w", err)
	}
	quote, ok := raw[id]
	if !ok {
		err := fmt.Errorf("price: no quote for %s", id)
		return Result{Error: err.Error()}, err
	}

	triggered := false
	var pegDeviation decimal.Decimal
	if stable {
		pegDeviation = quote.USD.Sub(decimal.NewFromInt(1)).Abs()
		triggered = pegDeviation.GreaterThan(depegThreshold)
	} else if quote.USD24HRChg.Abs().GreaterThan(decimal.NewFromInt(8)) {
		// An 8% daily move on a major is itself a signal.
		triggered = true
	}

	data := map[string]interface{}{
		"asset":          asset,
		"price_usd":      quote.USD.String(),
		"change_24h_pct": quote.USD24HRChg.StringFixed(2),
		"is_stablecoin":  stable,
	}
	if stable {
		data["peg_deviation"] = pegDeviation.String()
		data["depegged"] = triggered
	}

	return Result{
		Success:    true,
		Data:       data,
		Confidence: 0.9,
		Triggered:  triggered,
	}, nil
}
