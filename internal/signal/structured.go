package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/marketpulse/deepsignal/config"
)

// StructuredPlanner uses function calling so the backend returns typed
// arguments directly, skipping text parsing on the happy path. It still falls
// back to the extraction chain when the model answers in plain text. Preferred
// default: lowest latency, highest structural reliability.
type StructuredPlanner struct {
	cfg    config.CompletionConfig
	client *http.Client
	logger *log.Logger
}

func NewStructuredPlanner(cfg config.CompletionConfig) (*StructuredPlanner, error) {
	if cfg.APIKey == "" {
		return nil, ConfigurationError{Backend: "structured", Reason: "api_key not set"}
	}
	if cfg.Model == "" {
		return nil, ConfigurationError{Backend: "structured", Reason: "model not set"}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &StructuredPlanner{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: log.New(log.Writer(), "[STRUCT-PLANNER] ", log.LstdFlags),
	}, nil
}

// planFunction describes the tool-decision schema exposed to the model.
var planFunction = map[string]interface{}{
	"name":        "decide_tools",
	"description": "Decide which evidence tools to invoke for the event",
	"parameters": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tools": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string", "enum": []string{"search", "price", "macro", "onchain", "protocol"}},
			},
			"search_keywords":  map[string]interface{}{"type": "string"},
			"macro_indicators": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"onchain_assets":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"protocol_slugs":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"reason":           map[string]interface{}{"type": "string"},
			"confidence":       map[string]interface{}{"type": "number"},
		},
		"required": []string{"tools", "reason"},
	},
}

// signalFunction describes the final-signal schema exposed to the model.
var signalFunction = map[string]interface{}{
	"name":        "emit_signal",
	"description": "Emit the final structured trading signal",
	"parameters": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"summary":    map[string]interface{}{"type": "string"},
			"event_type": map[string]interface{}{"type": "string"},
			"asset":      map[string]interface{}{"type": "string"},
			"asset_name": map[string]interface{}{"type": "string"},
			"action":     map[string]interface{}{"type": "string", "enum": []string{"buy", "sell", "observe"}},
			"direction":  map[string]interface{}{"type": "string", "enum": []string{"long", "short", "neutral"}},
			"confidence": map[string]interface{}{"type": "number"},
			"strength":   map[string]interface{}{"type": "string"},
			"timeframe":  map[string]interface{}{"type": "string"},
			"risk_flags": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"notes":      map[string]interface{}{"type": "string"},
			"links":      map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		},
		"required": []string{"summary", "event_type", "asset", "action", "confidence"},
	},
}

// Backend identifies this planner in errors and logs.
func (p *StructuredPlanner) Backend() string { return BackendStructured }

func (p *StructuredPlanner) Plan(ctx context.Context, state *State, availableTools []string) (ToolPlan, error) {
	raw, err := p.call(ctx, buildPlanPrompt(state, availableTools), planFunction)
	if err != nil {
		return ToolPlan{}, err
	}
	plan := ToolPlan{Confidence: 1.0}
	if err := decodeJSON("structured", raw, &plan); err != nil {
		return ToolPlan{}, err
	}
	return plan, nil
}

func (p *StructuredPlanner) Synthesize(ctx context.Context, state *State) (string, error) {
	raw, err := p.call(ctx, buildSynthesisPrompt(state), signalFunction)
	if err != nil {
		return "", err
	}
	return extractJSONString("structured", raw)
}

// call sends the prompt with one declared function. The success path returns
// the function-call arguments verbatim; plain-text replies fall back to the
// message content for the extraction chain to handle.
func (p *StructuredPlanner) call(ctx context.Context, prompt string, fn map[string]interface{}) (string, error) {
	payload := map[string]interface{}{
		"model": p.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": p.cfg.Temperature,
		"tools": []map[string]interface{}{
			{"type": "function", "function": fn},
		},
		"tool_choice": map[string]interface{}{
			"type":     "function",
			"function": map[string]interface{}{"name": fn["name"]},
		},
	}
	if p.cfg.MaxTokens > 0 {
		payload["max_tokens"] = p.cfg.MaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", PlanningError{Backend: "structured", Err: err}
	}

	baseURL := p.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultCompletionBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", PlanningError{Backend: "structured", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if isDeadline(err) {
			return "", TimeoutError{Backend: "structured", Timeout: p.client.Timeout}
		}
		return "", PlanningError{Backend: "structured", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", PlanningError{Backend: "structured", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(b))}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					Function struct {
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", PlanningError{Backend: "structured", Err: fmt.Errorf("decode: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", PlanningError{Backend: "structured", Err: fmt.Errorf("no choices in response")}
	}
	msg := out.Choices[0].Message
	if len(msg.ToolCalls) > 0 && msg.ToolCalls[0].Function.Arguments != "" {
		return msg.ToolCalls[0].Function.Arguments, nil
	}
	if msg.Content != "" {
		p.logger.Printf("model answered in text instead of a function call, falling back to extraction")
		return msg.Content, nil
	}
	return "", MalformedOutputError{Backend: "structured", Raw: "empty message"}
}
