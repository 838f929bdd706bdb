package signal

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Reasoning backends routinely wrap structured output in prose or markdown.
// The extraction chain tries, in order: a fenced block tagged json, any
// fenced block, the first balanced {...} span, and finally the raw trimmed
// text. The first candidate that parses wins.

var (
	fencedJSONRe    = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)```")
	fencedGenericRe = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\s*\\n?(.*?)```")
)

// jsonCandidates returns the ordered extraction candidates for raw output.
func jsonCandidates(raw string) []string {
	var candidates []string
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := fencedGenericRe.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if span := firstBraceSpan(raw); span != "" {
		candidates = append(candidates, span)
	}
	candidates = append(candidates, strings.TrimSpace(raw))
	return candidates
}

// firstBraceSpan returns the first top-level {...} span found via balanced
// brace scanning, or "".
func firstBraceSpan(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// decodeJSON runs the extraction chain and unmarshals the first candidate
// that parses into out. Returns a MalformedOutputError naming the backend
// when every candidate fails.
func decodeJSON(backend, raw string, out interface{}) error {
	for _, candidate := range jsonCandidates(raw) {
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
	}
	return MalformedOutputError{Backend: backend, Raw: raw}
}

// extractJSONString runs the extraction chain and returns the first candidate
// that is valid JSON, preserving it verbatim. Feeding already-raw JSON
// through returns it unchanged.
func extractJSONString(backend, raw string) (string, error) {
	for _, candidate := range jsonCandidates(raw) {
		if candidate == "" {
			continue
		}
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	return "", MalformedOutputError{Backend: backend, Raw: raw}
}
