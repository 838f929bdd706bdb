package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/marketpulse/deepsignal/config"
)

const defaultSearchEndpoint = "https://google.serper.dev/search"

// officialDomains are sources of record for crypto-market events. A hit on any
// of them counts as official confirmation.
var officialDomains = []string{
	"coindesk.com", "cointelegraph.com", "theblock.co", "reuters.com",
	"bloomberg.com", "sec.gov", "circle.com", "tether.to", "binance.com",
	"coinbase.com", "chainalysis.com",
}

// SearchTool queries a serper.dev-compatible web search API and distills the
// hits into a confirmation envelope.
type SearchTool struct {
	cfg  config.SearchToolConfig
	http *HTTPClient
}

func NewSearchTool(cfg config.SearchToolConfig, httpc *HTTPClient) *SearchTool {
	return &SearchTool{cfg: cfg, http: httpc}
}

func (t *SearchTool) Name() string { return NameSearch }

func (t *SearchTool) Invoke(ctx context.Context, req Request) (Result, error) {
	query := strings.TrimSpace(req.Keywords)
	if query == "" {
		query = req.Asset
	}
	if query == "" {
		return Result{Error: "empty search query"}, fmt.Errorf("search: empty query")
	}

	endpoint := t.cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultSearchEndpoint
	}
	k := t.cfg.MaxResults
	if k <= 0 {
		k = 8
	}

	payload := map[string]any{"q": query, "num": k}
	headers := map[string]string{"X-API-KEY": t.cfg.APIKey}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := t.http.DoJSON(ctx, "POST", endpoint, headers, payload, &raw); err != nil {
		return Result{Error: err.Error()}, fmt.Errorf("search: %w", err)
	}

	var results []map[string]interface{}
	domains := make(map[string]struct{})
	official := false
	for i, item := range raw.Organic {
		if i >= k {
			break
		}
		domain := toDomain(item.Link)
		domains[domain] = struct{}{}
		if isOfficialDomain(domain) {
			official = true
		}
		results = append(results, map[string]interface{}{
			"title":   item.Title,
			"url":     item.Link,
			"snippet": item.Snippet,
			"domain":  domain,
		})
	}

	multiSource := len(domains) >= 2
	confidence := 0.3
	if len(results) > 0 {
		confidence = 0.5
	}
	if multiSource {
		confidence = 0.7
	}
	if official {
		confidence = 0.9
	}

	return Result{
		Success: true,
		Data: map[string]interface{}{
			"query":              query,
			"results":            results,
			"result_count":       len(results),
			"multi_source":       multiSource,
			"official_confirmed": official,
		},
		Confidence: confidence,
		Triggered:  official && len(results) > 0,
	}, nil
}

func isOfficialDomain(domain string) bool {
	for _, d := range officialDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// toDomain extracts the hostname from a URL string.
func toDomain(u string) string {
	if u == "" {
		return ""
	}
	s := u
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	s = strings.ToLower(s)
	return strings.TrimPrefix(s, "www.")
}
