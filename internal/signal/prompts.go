package signal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// eventText prefers the translation when the original is not English.
func eventText(p EventPayload) string {
	if p.Translated != "" {
		return p.Translated
	}
	return p.Text
}

// buildPlanPrompt renders the per-turn planning prompt.
func buildPlanPrompt(state *State, availableTools []string) string {
	evidenceBlock := "none yet"
	if len(state.Evidence) > 0 {
		if b, err := json.MarshalIndent(state.Evidence, "", "  "); err == nil {
			evidenceBlock = string(b)
		}
	}
	memoryBlock := state.MemoryEvidence
	if memoryBlock == "" {
		memoryBlock = "none"
	}

	return fmt.Sprintf(`You are a crypto-market analyst deciding which evidence tools to consult before issuing a trading signal.

EVENT:
Source: %s
Text: %s

PRELIMINARY CLASSIFICATION:
Event type: %s
Asset: %s
Proposed action: %s
Confidence: %.2f
Summary: %s

HISTORICAL CONTEXT:
%s

EVIDENCE GATHERED SO FAR (turn %d of %d):
%s

AVAILABLE TOOLS: %s
- search: web search to confirm the event (set search_keywords)
- price: spot price, 24h change, stablecoin peg check
- macro: macro indicator readings (set macro_indicators, e.g. ["DXY","US10Y"])
- onchain: exchange flows and whale activity (set onchain_assets)
- protocol: protocol TVL health (set protocol_slugs)

RULES:
1. Request only tools that would change the signal. Do not re-request a tool whose evidence is already present unless it failed.
2. Prefer an empty tool list once the evidence is sufficient to decide.
3. Respond ONLY with valid JSON.

OUTPUT FORMAT (JSON):
{
  "tools": ["search"],
  "search_keywords": "keywords if search requested",
  "macro_indicators": [],
  "onchain_assets": [],
  "protocol_slugs": [],
  "reason": "why these tools",
  "confidence": 0.9
}`,
		state.Payload.Source, eventText(state.Payload),
		state.Preliminary.EventType, state.Preliminary.Asset, state.Preliminary.Action,
		state.Preliminary.Confidence, state.Preliminary.Summary,
		memoryBlock,
		state.ToolCallCount+1, state.MaxToolCalls, evidenceBlock,
		strings.Join(availableTools, ", "))
}

// buildSynthesisPrompt renders the final consolidation prompt, including the
// confidence-adjustment directives the backend must honor.
func buildSynthesisPrompt(state *State) string {
	evidenceBlock := "no tool evidence was gathered"
	if len(state.Evidence) > 0 {
		if b, err := json.MarshalIndent(state.Evidence, "", "  "); err == nil {
			evidenceBlock = string(b)
		}
	}
	memoryBlock := state.MemoryEvidence
	if memoryBlock == "" {
		memoryBlock = "none"
	}

	return fmt.Sprintf(`You are a crypto-market analyst producing the final structured trading signal for an event.

EVENT:
Source: %s
Text: %s

PRELIMINARY CLASSIFICATION:
Event type: %s
Asset: %s
Proposed action: %s
Confidence: %.2f
Summary: %s

HISTORICAL CONTEXT:
%s

GATHERED EVIDENCE:
%s

CONFIDENCE ADJUSTMENT RULES (baseline is the preliminary confidence %.2f):
- Multi-source evidence WITH official confirmation: raise confidence by 0.15 to 0.20.
- Multi-source evidence WITHOUT official confirmation: raise by 0.05 to 0.10.
- Sparse evidence or no official source found: lower by 0.10 to 0.20.
- Conflicting sources: lower by 0.20 and add "data_incomplete" to risk_flags.
- A historical precedent with similarity above 0.8 may shift confidence up to 0.10 toward that precedent's outcome.
- Keep confidence within [0,1]. If your final confidence is below 0.4, add "confidence_low" to risk_flags.

OUTPUT FORMAT (JSON):
{
  "summary": "one-paragraph signal summary",
  "event_type": "%s",
  "asset": "%s",
  "asset_name": "",
  "action": "buy|sell|observe",
  "direction": "long|short|neutral",
  "confidence": 0.0,
  "strength": "weak|moderate|strong",
  "timeframe": "intraday|short_term|medium_term",
  "risk_flags": [],
  "notes": "reasoning trace referencing the evidence",
  "links": ["urls of confirming sources"]
}

Respond ONLY with valid JSON.`,
		state.Payload.Source, eventText(state.Payload),
		state.Preliminary.EventType, state.Preliminary.Asset, state.Preliminary.Action,
		state.Preliminary.Confidence, state.Preliminary.Summary,
		memoryBlock, evidenceBlock,
		state.Preliminary.Confidence,
		state.Preliminary.EventType, state.Preliminary.Asset)
}

// eventTypeSearchTerms maps event types to the query fragments appended to
// the asset when the force-search rule synthesizes keywords.
var eventTypeSearchTerms = map[string]string{
	EventHack:        "hack exploit stolen funds",
	EventDepeg:       "depeg peg lost stablecoin",
	EventRegulation:  "regulation SEC lawsuit enforcement",
	EventListing:     "listing exchange announcement",
	EventPartnership: "partnership integration announcement",
	EventLiquidation: "liquidation cascade",
	EventCelebrity:   "endorsement statement",
}

// synthesizeSearchKeywords composes search keywords from the event without a
// backend round trip.
func synthesizeSearchKeywords(state *State) string {
	parts := []string{}
	if state.Preliminary.Asset != "" {
		parts = append(parts, state.Preliminary.Asset)
	}
	if terms, ok := eventTypeSearchTerms[state.Preliminary.EventType]; ok {
		parts = append(parts, terms)
	} else if state.Preliminary.EventType != "" {
		parts = append(parts, state.Preliminary.EventType)
	}
	if len(parts) == 0 && len(state.Payload.Keywords) > 0 {
		parts = state.Payload.Keywords
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
