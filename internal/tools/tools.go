package tools

import (
	"context"
	"log"
	"time"

	"github.com/marketpulse/deepsignal/config"
)

// Result is the uniform envelope every evidence tool returns. The engine
// treats it identically regardless of which tool produced it.
type Result struct {
	Success    bool                   `json:"success"`
	Data       map[string]interface{} `json:"data"`
	Confidence float64                `json:"confidence"`
	// Triggered marks an anomaly or high-signal condition (price depeg,
	// official hack confirmation), distinct from plain success.
	Triggered bool   `json:"triggered"`
	Error     string `json:"error,omitempty"`
}

// Request carries the planner's parameters into a tool invocation. Each tool
// reads only the fields relevant to it.
type Request struct {
	Keywords        string
	Asset           string
	MacroIndicators []string
	OnchainAssets   []string
	ProtocolSlugs   []string
}

// Tool is a single evidence gatherer.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, req Request) (Result, error)
}

// Tool names form the supported universe; plans referencing anything else are
// skipped at execution time.
const (
	NameSearch   = "search"
	NamePrice    = "price"
	NameMacro    = "macro"
	NameOnchain  = "onchain"
	NameProtocol = "protocol"
)

// KnownName reports whether name belongs to the supported tool universe.
func KnownName(name string) bool {
	switch name {
	case NameSearch, NamePrice, NameMacro, NameOnchain, NameProtocol:
		return true
	}
	return false
}

// NewRegistry builds the set of tools that are actually configured. Tools
// missing credentials are left out; the executor skips them with a warning.
func NewRegistry(cfg config.ToolsConfig, logger *log.Logger) map[string]Tool {
	httpc := NewHTTPClient(15*time.Second, 2, 300*time.Millisecond)
	registry := make(map[string]Tool)
	if cfg.Search.APIKey != "" {
		registry[NameSearch] = NewSearchTool(cfg.Search, httpc)
	}
	registry[NamePrice] = NewPriceTool(cfg.Price, httpc)
	if cfg.Macro.Endpoint != "" {
		registry[NameMacro] = NewMacroTool(cfg.Macro, httpc)
	}
	if cfg.Onchain.Endpoint != "" {
		registry[NameOnchain] = NewOnchainTool(cfg.Onchain, httpc)
	}
	if cfg.Protocol.Endpoint != "" {
		registry[NameProtocol] = NewProtocolTool(cfg.Protocol, httpc)
	}
	if logger != nil {
		names := make([]string, 0, len(registry))
		for name := range registry {
			names = append(names, name)
		}
		logger.Printf("initialized %d evidence tools: %v", len(registry), names)
	}
	return registry
}
