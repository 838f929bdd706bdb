package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Entry is one historically similar event returned by the memory backend.
type Entry struct {
	Summary    string    `json:"summary"`
	Action     string    `json:"action"`
	Confidence float64   `json:"confidence"`
	Similarity float64   `json:"similarity"`
	Assets     []string  `json:"assets"`
	CreatedAt  time.Time `json:"created_at"`
}

// Fetcher retrieves prior events similar to the one being analyzed. It must
// return an empty slice, not an error, when nothing matches; backends with a
// different retrieval shape are adapted to this signature at construction
// time.
type Fetcher interface {
	Fetch(ctx context.Context, keywords []string, assetCodes []string) ([]Entry, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, keywords []string, assetCodes []string) ([]Entry, error)

func (f FetcherFunc) Fetch(ctx context.Context, keywords []string, assetCodes []string) ([]Entry, error) {
	return f(ctx, keywords, assetCodes)
}

// FormatEntries renders historical entries into a prompt-ready block, most
// similar first, capped at limit. Returns "" for no entries.
func FormatEntries(entries []Entry, limit int) string {
	if len(entries) == 0 {
		return ""
	}
	if limit <= 0 {
		limit = 5
	}
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Similarity > ordered[j].Similarity })
	var b strings.Builder
	b.WriteString("Similar historical events:\n")
	count := 0
	for _, e := range ordered {
		if count >= limit {
			break
		}
		summary := strings.TrimSpace(e.Summary)
		if summary == "" {
			continue
		}
		age := ""
		if !e.CreatedAt.IsZero() {
			age = fmt.Sprintf(", %s ago", humanAge(time.Since(e.CreatedAt)))
		}
		assets := ""
		if len(e.Assets) > 0 {
			assets = " [" + strings.Join(e.Assets, ",") + "]"
		}
		fmt.Fprintf(&b, "- (similarity %.2f%s)%s %s -> action=%s confidence=%.2f\n",
			e.Similarity, age, assets, summary, e.Action, e.Confidence)
		count++
	}
	if count == 0 {
		return ""
	}
	return b.String()
}

func humanAge(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
