package signal

import (
	"fmt"
	"log"

	"github.com/marketpulse/deepsignal/config"
)

// Planner backend kinds accepted by the factory.
const (
	BackendStructured = "structured"
	BackendCLI        = "cli"
	BackendText       = "text"
)

// NewPlanner constructs one planner backend by kind. Unknown kinds are a
// configuration error.
func NewPlanner(kind string, cfg config.LLMConfig) (Planner, error) {
	switch kind {
	case BackendStructured:
		return NewStructuredPlanner(cfg.Structured)
	case BackendCLI:
		return NewCLIPlanner(cfg.CLI)
	case BackendText:
		return NewTextPlanner(cfg.Text)
	default:
		return nil, ConfigurationError{Backend: kind, Reason: fmt.Sprintf("unknown planner backend %q", kind)}
	}
}

// NewPlannerWithFallback builds the primary backend and, when construction
// fails for any reason, logs and builds the fallback instead. Runtime
// failures of a successfully constructed primary are the caller's problem;
// this path covers construction only.
func NewPlannerWithFallback(primary, fallback string, cfg config.LLMConfig, logger *log.Logger) (Planner, error) {
	p, err := NewPlanner(primary, cfg)
	if err == nil {
		return p, nil
	}
	if logger != nil {
		logger.Printf("primary planner backend %q unavailable (%v), falling back to %q", primary, err, fallback)
	}
	fb, fbErr := NewPlanner(fallback, cfg)
	if fbErr != nil {
		return nil, fmt.Errorf("primary backend %q failed (%v) and fallback %q failed: %w", primary, err, fallback, fbErr)
	}
	return fb, nil
}
