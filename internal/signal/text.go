package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/marketpulse/deepsignal/config"
)

const defaultCompletionBaseURL = "https://api.openai.com/v1"

// TextPlanner targets any chat-completion compatible endpoint and extracts
// JSON from the free-text reply. It is the lowest common denominator backend:
// slower to parse than function calling but runs against anything.
type TextPlanner struct {
	cfg    config.CompletionConfig
	client *http.Client
	logger *log.Logger
}

// NewTextPlanner validates required settings up front; a missing provider,
// credential or model is a construction-time error.
func NewTextPlanner(cfg config.CompletionConfig) (*TextPlanner, error) {
	if cfg.Provider == "" {
		return nil, ConfigurationError{Backend: "text", Reason: "provider not set"}
	}
	if cfg.APIKey == "" {
		return nil, ConfigurationError{Backend: "text", Reason: "api_key not set"}
	}
	if cfg.Model == "" {
		return nil, ConfigurationError{Backend: "text", Reason: "model not set"}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &TextPlanner{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: log.New(log.Writer(), "[TEXT-PLANNER] ", log.LstdFlags),
	}, nil
}

// Backend identifies this planner in errors and logs.
func (p *TextPlanner) Backend() string { return BackendText }

func (p *TextPlanner) Plan(ctx context.Context, state *State, availableTools []string) (ToolPlan, error) {
	raw, err := p.complete(ctx, buildPlanPrompt(state, availableTools))
	if err != nil {
		return ToolPlan{}, err
	}
	plan := ToolPlan{Confidence: 1.0}
	if err := decodeJSON("text", raw, &plan); err != nil {
		return ToolPlan{}, err
	}
	return plan, nil
}

func (p *TextPlanner) Synthesize(ctx context.Context, state *State) (string, error) {
	raw, err := p.complete(ctx, buildSynthesisPrompt(state))
	if err != nil {
		return "", err
	}
	return extractJSONString("text", raw)
}

// complete sends one user message and returns the first choice's content.
func (p *TextPlanner) complete(ctx context.Context, prompt string) (string, error) {
	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type chatReq struct {
		Model       string    `json:"model"`
		Messages    []chatMsg `json:"messages"`
		Temperature float64   `json:"temperature"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}

	body, err := json.Marshal(chatReq{
		Model:       p.cfg.Model,
		Messages:    []chatMsg{{Role: "user", Content: prompt}},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	})
	if err != nil {
		return "", PlanningError{Backend: "text", Err: err}
	}

	baseURL := p.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultCompletionBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", PlanningError{Backend: "text", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if isDeadline(err) {
			return "", TimeoutError{Backend: "text", Timeout: p.client.Timeout}
		}
		return "", PlanningError{Backend: "text", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", PlanningError{Backend: "text", Err: fmt.Errorf("%s status %d: %s", p.cfg.Provider, resp.StatusCode, string(b))}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", PlanningError{Backend: "text", Err: fmt.Errorf("decode: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", PlanningError{Backend: "text", Err: fmt.Errorf("no choices in response")}
	}
	return out.Choices[0].Message.Content, nil
}

func isDeadline(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
