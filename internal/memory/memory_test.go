package memory

import (
	"strings"
	"testing"
	"time"
)

func TestFormatEntriesEmpty(t *testing.T) {
	if got := FormatEntries(nil, 5); got != "" {
		t.Fatalf("no entries must render to empty string, got %q", got)
	}
}

func TestFormatEntriesOrdersBySimilarity(t *testing.T) {
	entries := []Entry{
		{Summary: "minor listing rumor", Action: "observe", Confidence: 0.4, Similarity: 0.55},
		{Summary: "USDC depeg after SVB", Action: "sell", Confidence: 0.9, Similarity: 0.92, Assets: []string{"USDC"}},
	}
	got := FormatEntries(entries, 5)
	first := strings.Index(got, "USDC depeg")
	second := strings.Index(got, "minor listing")
	if first == -1 || second == -1 {
		t.Fatalf("both entries should render, got %q", got)
	}
	if first > second {
		t.Fatal("entries must render most similar first")
	}
}

func TestFormatEntriesRespectsLimit(t *testing.T) {
	entries := []Entry{
		{Summary: "a", Similarity: 0.9},
		{Summary: "b", Similarity: 0.8},
		{Summary: "c", Similarity: 0.7},
	}
	got := FormatEntries(entries, 2)
	if strings.Count(got, "- (") != 2 {
		t.Fatalf("want 2 rendered entries, got %q", got)
	}
}

func TestFormatEntriesSkipsBlankSummaries(t *testing.T) {
	entries := []Entry{{Summary: "   ", Similarity: 0.9}}
	if got := FormatEntries(entries, 5); got != "" {
		t.Fatalf("blank-only entries must render to empty string, got %q", got)
	}
}

func TestFormatEntriesIncludesAge(t *testing.T) {
	entries := []Entry{{
		Summary:    "exchange hack",
		Action:     "sell",
		Similarity: 0.8,
		CreatedAt:  time.Now().Add(-3 * 24 * time.Hour),
	}}
	got := FormatEntries(entries, 5)
	if !strings.Contains(got, "3d ago") {
		t.Fatalf("want age rendered, got %q", got)
	}
}
