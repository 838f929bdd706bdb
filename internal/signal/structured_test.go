package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marketpulse/deepsignal/config"
)

func functionCallServer(t *testing.T, arguments, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if _, ok := req["tools"]; !ok {
			t.Error("request must declare a function tool")
		}
		msg := map[string]interface{}{"content": content}
		if arguments != "" {
			msg["tool_calls"] = []map[string]interface{}{
				{"function": map[string]string{"arguments": arguments}},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": msg}},
		})
	}))
}

func TestNewStructuredPlannerMissingKey(t *testing.T) {
	_, err := NewStructuredPlanner(config.CompletionConfig{Provider: "openai", Model: "gpt-4o"})
	if !IsConfiguration(err) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestStructuredPlannerPlanFromFunctionCall(t *testing.T) {
	srv := functionCallServer(t, `{"tools":["search","onchain"],"search_keywords":"USDC hack","onchain_assets":["USDC"]}`, "")
	defer srv.Close()

	p, err := NewStructuredPlanner(textCfg(srv.URL))
	if err != nil {
		t.Fatalf("constructing structured planner: %v", err)
	}
	plan, err := p.Plan(context.Background(), cliTestState(), []string{"search", "onchain"})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(plan.Tools) != 2 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if len(plan.OnchainAssets) != 1 || plan.OnchainAssets[0] != "USDC" {
		t.Fatalf("unexpected onchain assets: %+v", plan.OnchainAssets)
	}
}

func TestStructuredPlannerFallsBackToContent(t *testing.T) {
	srv := functionCallServer(t, "", "here: {\"tools\":[\"price\"]}")
	defer srv.Close()

	p, err := NewStructuredPlanner(textCfg(srv.URL))
	if err != nil {
		t.Fatalf("constructing structured planner: %v", err)
	}
	plan, err := p.Plan(context.Background(), cliTestState(), []string{"price"})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(plan.Tools) != 1 || plan.Tools[0] != "price" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestStructuredPlannerEmptyMessage(t *testing.T) {
	srv := functionCallServer(t, "", "")
	defer srv.Close()

	p, err := NewStructuredPlanner(textCfg(srv.URL))
	if err != nil {
		t.Fatalf("constructing structured planner: %v", err)
	}
	_, err = p.Plan(context.Background(), cliTestState(), []string{"price"})
	var moe MalformedOutputError
	if !errors.As(err, &moe) {
		t.Fatalf("want MalformedOutputError, got %v", err)
	}
}

func TestStructuredPlannerSynthesize(t *testing.T) {
	args := `{"summary":"confirmed hack","event_type":"hack","asset":"USDC","action":"sell","confidence":0.76}`
	srv := functionCallServer(t, args, "")
	defer srv.Close()

	p, err := NewStructuredPlanner(textCfg(srv.URL))
	if err != nil {
		t.Fatalf("constructing structured planner: %v", err)
	}
	raw, err := p.Synthesize(context.Background(), cliTestState())
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if raw != args {
		t.Fatalf("function-call arguments must pass through verbatim, got %q", raw)
	}
}
