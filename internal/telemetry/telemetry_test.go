package telemetry

import (
	"fmt"
	"testing"
	"time"
)

func TestRecordProcessingEventKeepsBoundedHistory(t *testing.T) {
	tel := New()
	for i := 0; i < recentEventCap+10; i++ {
		tel.RecordProcessingEvent(ProcessingEvent{
			EventID:   fmt.Sprintf("ev-%d", i),
			EventType: "macro",
			Success:   true,
			StartTime: time.Now(),
			Duration:  time.Second,
		})
	}
	recent := tel.RecentEvents()
	if len(recent) != recentEventCap {
		t.Fatalf("history must cap at %d, got %d", recentEventCap, len(recent))
	}
	if recent[len(recent)-1].EventID != fmt.Sprintf("ev-%d", recentEventCap+9) {
		t.Fatalf("history must keep the newest events, got %s", recent[len(recent)-1].EventID)
	}
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry
	tel.RecordTurn()
	tel.RecordToolCall("search", "success")
	tel.RecordQuotaSkip()
	tel.RecordPlannerError("timeout")
	tel.RecordSynthesisFailure()
	tel.RecordProcessingEvent(ProcessingEvent{})
	if got := tel.RecentEvents(); got != nil {
		t.Fatalf("nil telemetry must report no history, got %v", got)
	}
}
