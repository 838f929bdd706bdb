package tools

import (
	"testing"

	"github.com/marketpulse/deepsignal/config"
)

func TestKnownName(t *testing.T) {
	for _, name := range []string{NameSearch, NamePrice, NameMacro, NameOnchain, NameProtocol} {
		if !KnownName(name) {
			t.Fatalf("%s should be known", name)
		}
	}
	if KnownName("telepathy") {
		t.Fatal("unknown names must be rejected")
	}
}

func TestNewRegistrySkipsUnconfigured(t *testing.T) {
	registry := NewRegistry(config.ToolsConfig{}, nil)
	if _, ok := registry[NameSearch]; ok {
		t.Fatal("search without an api key must not be registered")
	}
	if _, ok := registry[NameMacro]; ok {
		t.Fatal("macro without an endpoint must not be registered")
	}
	if _, ok := registry[NamePrice]; !ok {
		t.Fatal("price needs no credentials and must always be registered")
	}
}

func TestNewRegistryFull(t *testing.T) {
	cfg := config.ToolsConfig{
		Search:   config.SearchToolConfig{APIKey: "k"},
		Macro:    config.MacroToolConfig{Endpoint: "http://macro"},
		Onchain:  config.OnchainToolConfig{Endpoint: "http://onchain"},
		Protocol: config.ProtocolToolConfig{Endpoint: "http://llama"},
	}
	registry := NewRegistry(cfg, nil)
	if len(registry) != 5 {
		t.Fatalf("want all 5 tools registered, got %d", len(registry))
	}
	for name, tool := range registry {
		if tool.Name() != name {
			t.Fatalf("registry key %q does not match tool name %q", name, tool.Name())
		}
	}
}
