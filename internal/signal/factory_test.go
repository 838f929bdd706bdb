package signal

import (
	"testing"

	"github.com/marketpulse/deepsignal/config"
)

func TestNewPlannerUnknownKind(t *testing.T) {
	_, err := NewPlanner("quantum", config.LLMConfig{})
	if !IsConfiguration(err) {
		t.Fatalf("unknown backend kind must be a configuration error, got %v", err)
	}
}

func TestNewPlannerSelectsKind(t *testing.T) {
	cfg := config.LLMConfig{
		Structured: config.CompletionConfig{Provider: "openai", APIKey: "k", Model: "m"},
		Text:       config.CompletionConfig{Provider: "openai", APIKey: "k", Model: "m"},
	}
	for _, kind := range []string{BackendStructured, BackendText} {
		p, err := NewPlanner(kind, cfg)
		if err != nil {
			t.Fatalf("building %s: %v", kind, err)
		}
		type named interface{ Backend() string }
		if got := p.(named).Backend(); got != kind {
			t.Fatalf("want %s, got %s", kind, got)
		}
	}
}

func TestFallbackUsedWhenPrimaryUnbuildable(t *testing.T) {
	cfg := config.LLMConfig{
		// structured has no credentials; text does
		Text: config.CompletionConfig{Provider: "openai", APIKey: "k", Model: "m"},
	}
	p, err := NewPlannerWithFallback(BackendStructured, BackendText, cfg, nil)
	if err != nil {
		t.Fatalf("fallback construction failed: %v", err)
	}
	if _, ok := p.(*TextPlanner); !ok {
		t.Fatalf("want text fallback, got %T", p)
	}
}

func TestFallbackNotUsedWhenPrimaryBuilds(t *testing.T) {
	cfg := config.LLMConfig{
		Structured: config.CompletionConfig{Provider: "openai", APIKey: "k", Model: "m"},
		Text:       config.CompletionConfig{Provider: "openai", APIKey: "k", Model: "m"},
	}
	p, err := NewPlannerWithFallback(BackendStructured, BackendText, cfg, nil)
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	if _, ok := p.(*StructuredPlanner); !ok {
		t.Fatalf("primary must win when buildable, got %T", p)
	}
}

func TestFallbackBothFail(t *testing.T) {
	_, err := NewPlannerWithFallback(BackendStructured, BackendText, config.LLMConfig{}, nil)
	if err == nil {
		t.Fatal("want error when both backends are unbuildable")
	}
}
