package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marketpulse/deepsignal/config"
)

func serperServer(t *testing.T, results []map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "serper-key" {
			t.Errorf("unexpected api key header %q", got)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding search request: %v", err)
		}
		if req["q"] == "" {
			t.Error("query must not be empty")
		}
		organic := make([]map[string]string, 0, len(results))
		organic = append(organic, results...)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"organic": organic})
	}))
}

func testHTTPClient() *HTTPClient {
	return NewHTTPClient(5*time.Second, 0, 10*time.Millisecond)
}

func TestSearchOfficialMultiSource(t *testing.T) {
	srv := serperServer(t, []map[string]string{
		{"title": "Circle confirms exploit", "link": "https://www.coindesk.com/business/usdc-hack", "snippet": "..."},
		{"title": "USDC issuer statement", "link": "https://circle.com/blog/statement", "snippet": "..."},
	})
	defer srv.Close()

	tool := NewSearchTool(config.SearchToolConfig{APIKey: "serper-key", Endpoint: srv.URL}, testHTTPClient())
	res, err := tool.Invoke(context.Background(), Request{Keywords: "USDC hack exploit"})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Data["multi_source"] != true {
		t.Fatal("two distinct domains must count as multi-source")
	}
	if res.Data["official_confirmed"] != true {
		t.Fatal("coindesk hit must count as official confirmation")
	}
	if res.Confidence != 0.9 {
		t.Fatalf("official confirmation should score 0.9, got %v", res.Confidence)
	}
	if !res.Triggered {
		t.Fatal("official confirmation with results must trigger")
	}
}

func TestSearchSingleUnofficialSource(t *testing.T) {
	srv := serperServer(t, []map[string]string{
		{"title": "rumor", "link": "https://some-blog.example/post/1", "snippet": "..."},
		{"title": "rumor again", "link": "https://some-blog.example/post/2", "snippet": "..."},
	})
	defer srv.Close()

	tool := NewSearchTool(config.SearchToolConfig{APIKey: "serper-key", Endpoint: srv.URL}, testHTTPClient())
	res, err := tool.Invoke(context.Background(), Request{Keywords: "obscure token rumor"})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if res.Data["multi_source"] != false {
		t.Fatal("same-domain hits must not count as multi-source")
	}
	if res.Confidence != 0.5 {
		t.Fatalf("single unofficial source should score 0.5, got %v", res.Confidence)
	}
	if res.Triggered {
		t.Fatal("unofficial hits must not trigger")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	tool := NewSearchTool(config.SearchToolConfig{APIKey: "serper-key"}, testHTTPClient())
	if _, err := tool.Invoke(context.Background(), Request{}); err == nil {
		t.Fatal("empty query must error")
	}
}

func TestToDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.coindesk.com/markets/article": "coindesk.com",
		"http://theblock.co:8080/post":             "theblock.co",
		"reuters.com/markets":                      "reuters.com",
		"": "",
	}
	for in, want := range cases {
		if got := toDomain(in); got != want {
			t.Fatalf("toDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsOfficialDomainSubdomains(t *testing.T) {
	if !isOfficialDomain("blog.circle.com") {
		t.Fatal("subdomains of official domains must count")
	}
	if isOfficialDomain("circle.com.evil.example") {
		t.Fatal("lookalike domains must not count")
	}
}
