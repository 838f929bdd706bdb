package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marketpulse/deepsignal/config"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func textCfg(baseURL string) config.CompletionConfig {
	return config.CompletionConfig{
		Provider: "openai",
		APIKey:   "test-key",
		Model:    "gpt-4o-mini",
		BaseURL:  baseURL,
	}
}

func TestNewTextPlannerMissingSettings(t *testing.T) {
	cases := []config.CompletionConfig{
		{},
		{Provider: "openai"},
		{Provider: "openai", APIKey: "k"},
	}
	for _, cfg := range cases {
		if _, err := NewTextPlanner(cfg); !IsConfiguration(err) {
			t.Fatalf("config %+v: want configuration error, got %v", cfg, err)
		}
	}
}

func TestTextPlannerPlan(t *testing.T) {
	srv := completionServer(t, "Sure, here you go:\n```json\n{\"tools\":[\"price\"],\"reason\":\"check peg\"}\n```")
	defer srv.Close()

	p, err := NewTextPlanner(textCfg(srv.URL))
	if err != nil {
		t.Fatalf("constructing text planner: %v", err)
	}
	plan, err := p.Plan(context.Background(), cliTestState(), []string{"search", "price"})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(plan.Tools) != 1 || plan.Tools[0] != "price" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestTextPlannerSynthesize(t *testing.T) {
	srv := completionServer(t, `{"summary":"usdc depeg","confidence":0.62}`)
	defer srv.Close()

	p, err := NewTextPlanner(textCfg(srv.URL))
	if err != nil {
		t.Fatalf("constructing text planner: %v", err)
	}
	raw, err := p.Synthesize(context.Background(), cliTestState())
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if raw != `{"summary":"usdc depeg","confidence":0.62}` {
		t.Fatalf("unexpected output: %q", raw)
	}
}

func TestTextPlannerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewTextPlanner(textCfg(srv.URL))
	if err != nil {
		t.Fatalf("constructing text planner: %v", err)
	}
	_, err = p.Plan(context.Background(), cliTestState(), []string{"search"})
	var pe PlanningError
	if !errors.As(err, &pe) {
		t.Fatalf("want PlanningError, got %v", err)
	}
}

func TestTextPlannerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	cfg := textCfg(srv.URL)
	cfg.Timeout = 100 * time.Millisecond
	p, err := NewTextPlanner(cfg)
	if err != nil {
		t.Fatalf("constructing text planner: %v", err)
	}
	_, err = p.Plan(context.Background(), cliTestState(), []string{"search"})
	if !IsTimeout(err) {
		t.Fatalf("want timeout error, got %v", err)
	}
}

func TestTextPlannerMalformedReply(t *testing.T) {
	srv := completionServer(t, "I am unable to help with that request.")
	defer srv.Close()

	p, err := NewTextPlanner(textCfg(srv.URL))
	if err != nil {
		t.Fatalf("constructing text planner: %v", err)
	}
	_, err = p.Plan(context.Background(), cliTestState(), []string{"search"})
	var moe MalformedOutputError
	if !errors.As(err, &moe) {
		t.Fatalf("want MalformedOutputError, got %v", err)
	}
}
