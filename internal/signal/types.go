package signal

import (
	"context"
	"time"

	"github.com/marketpulse/deepsignal/internal/tools"
)

// EventPayload is the inbound market text event, consumed read-only.
type EventPayload struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Translated  string    `json:"translated,omitempty"`
	Source      string    `json:"source"`
	Keywords    []string  `json:"keywords,omitempty"`
	Language    string    `json:"language,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

// PreliminaryAnalysis is the upstream classification that decided this event
// deserves deep analysis. The engine never mutates it.
type PreliminaryAnalysis struct {
	EventType  string  `json:"event_type"`
	Asset      string  `json:"asset"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
}

// Event types produced by the preliminary classifier.
const (
	EventHack        = "hack"
	EventRegulation  = "regulation"
	EventListing     = "listing"
	EventPartnership = "partnership"
	EventMacro       = "macro"
	EventGovernance  = "governance"
	EventAirdrop     = "airdrop"
	EventCelebrity   = "celebrity"
	EventDepeg       = "depeg"
	EventLiquidation = "liquidation"
	EventOther       = "other"
)

// ToolPlan is the planner's decision for one turn: which evidence tools to
// invoke and with what parameters. Unknown tool names survive parsing and are
// skipped at execution time.
type ToolPlan struct {
	Tools           []string `json:"tools"`
	SearchKeywords  string   `json:"search_keywords,omitempty"`
	MacroIndicators []string `json:"macro_indicators,omitempty"`
	OnchainAssets   []string `json:"onchain_assets,omitempty"`
	ProtocolSlugs   []string `json:"protocol_slugs,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	// Confidence is advisory; routing never consults it.
	Confidence float64 `json:"confidence,omitempty"`
}

// Evidence maps tool name to that tool's latest result. Entries accumulate
// monotonically across turns; only re-invoking the same tool replaces one.
type Evidence map[string]tools.Result

// Risk flags attached to a final signal.
const (
	RiskConfidenceLow  = "confidence_low"
	RiskDataIncomplete = "data_incomplete"
)

// confidenceLowThreshold is the final confidence below which the
// confidence_low flag is mandatory.
const confidenceLowThreshold = 0.4

// FinalSignal is the synthesized trading signal, the sole output of the
// engine.
type FinalSignal struct {
	Summary    string   `json:"summary"`
	EventType  string   `json:"event_type"`
	Asset      string   `json:"asset"`
	AssetName  string   `json:"asset_name,omitempty"`
	Action     string   `json:"action"`
	Direction  string   `json:"direction"`
	Confidence float64  `json:"confidence"`
	Strength   string   `json:"strength,omitempty"`
	Timeframe  string   `json:"timeframe,omitempty"`
	RiskFlags  []string `json:"risk_flags"`
	Notes      string   `json:"notes,omitempty"`
	Links      []string `json:"links,omitempty"`
}

// HasRiskFlag reports whether flag is present.
func (s *FinalSignal) HasRiskFlag(flag string) bool {
	for _, f := range s.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// State is the per-event orchestration state. It exists only for the
// lifetime of one event's deep analysis and is never shared across events.
type State struct {
	Payload        EventPayload
	Preliminary    PreliminaryAnalysis
	MemoryEvidence string
	Evidence       Evidence
	NextTools      []string
	SearchKeywords string
	ToolCallCount  int
	MaxToolCalls   int
	Final          *FinalSignal
}

// NewState initializes orchestration state for one event.
func NewState(payload EventPayload, prelim PreliminaryAnalysis, maxToolCalls int) *State {
	return &State{
		Payload:      payload,
		Preliminary:  prelim,
		Evidence:     make(Evidence),
		MaxToolCalls: maxToolCalls,
	}
}

// Planner decides which evidence tools to invoke and synthesizes the final
// signal. Implementations wrap a function-calling model, a subprocess
// reasoning engine, or a generic completion API; the graph treats them
// identically.
type Planner interface {
	// Plan returns the tool decision for the current turn.
	Plan(ctx context.Context, state *State, availableTools []string) (ToolPlan, error)
	// Synthesize returns a JSON string conforming to the FinalSignal schema.
	Synthesize(ctx context.Context, state *State) (string, error)
}
