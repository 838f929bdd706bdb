package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Telemetry records processing metrics for the deep-analysis engine. All
// counters are process-wide and safe for concurrent use.
type Telemetry struct {
	logger *log.Logger

	eventsProcessed *prometheus.CounterVec
	plannerTurns    prometheus.Counter
	toolCalls       *prometheus.CounterVec
	quotaSkips      prometheus.Counter
	plannerErrors   *prometheus.CounterVec
	synthesisFailed prometheus.Counter
	eventDuration   prometheus.Histogram

	mu     sync.Mutex
	recent []ProcessingEvent
}

// ProcessingEvent captures one event's trip through the graph.
type ProcessingEvent struct {
	EventID   string
	EventType string
	Asset     string
	Turns     int
	ToolsUsed []string
	Success   bool
	Error     string
	StartTime time.Time
	Duration  time.Duration
}

const recentEventCap = 128

// New registers the engine's metrics on the default registry.
func New() *Telemetry {
	return &Telemetry{
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		eventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deepsignal_events_processed_total",
			Help: "Events run through the deep-analysis graph, by outcome.",
		}, []string{"outcome"}),
		plannerTurns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deepsignal_planner_turns_total",
			Help: "Planner/executor turns across all events.",
		}),
		toolCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deepsignal_tool_calls_total",
			Help: "Evidence tool invocations, by tool and status.",
		}, []string{"tool", "status"}),
		quotaSkips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deepsignal_quota_skipped_turns_total",
			Help: "Executor turns skipped because the daily tool budget was exhausted.",
		}),
		plannerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deepsignal_planner_errors_total",
			Help: "Planner backend failures absorbed by the graph, by kind.",
		}, []string{"kind"}),
		synthesisFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deepsignal_synthesis_failures_total",
			Help: "Terminal synthesis failures.",
		}),
		eventDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "deepsignal_event_duration_seconds",
			Help:    "Wall-clock duration of one event's deep analysis.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

// RecordTurn counts one planner/executor turn.
func (t *Telemetry) RecordTurn() {
	if t == nil {
		return
	}
	t.plannerTurns.Inc()
}

// RecordToolCall counts one tool invocation outcome.
func (t *Telemetry) RecordToolCall(tool, status string) {
	if t == nil {
		return
	}
	t.toolCalls.WithLabelValues(tool, status).Inc()
}

// RecordQuotaSkip counts a turn consumed by quota exhaustion.
func (t *Telemetry) RecordQuotaSkip() {
	if t == nil {
		return
	}
	t.quotaSkips.Inc()
}

// RecordPlannerError counts an absorbed planner failure.
func (t *Telemetry) RecordPlannerError(kind string) {
	if t == nil {
		return
	}
	t.plannerErrors.WithLabelValues(kind).Inc()
}

// RecordSynthesisFailure counts a terminal synthesis failure.
func (t *Telemetry) RecordSynthesisFailure() {
	if t == nil {
		return
	}
	t.synthesisFailed.Inc()
}

// RecordProcessingEvent finalizes one event's record.
func (t *Telemetry) RecordProcessingEvent(ev ProcessingEvent) {
	if t == nil {
		return
	}
	outcome := "success"
	if !ev.Success {
		outcome = "failure"
	}
	t.eventsProcessed.WithLabelValues(outcome).Inc()
	t.eventDuration.Observe(ev.Duration.Seconds())

	t.mu.Lock()
	t.recent = append(t.recent, ev)
	if len(t.recent) > recentEventCap {
		t.recent = t.recent[len(t.recent)-recentEventCap:]
	}
	t.mu.Unlock()

	t.logger.Printf("event %s (%s/%s): outcome=%s turns=%d tools=%v in %v",
		ev.EventID, ev.EventType, ev.Asset, outcome, ev.Turns, ev.ToolsUsed, ev.Duration.Round(time.Millisecond))
}

// RecentEvents returns a copy of the most recent processing records.
func (t *Telemetry) RecentEvents() []ProcessingEvent {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ProcessingEvent, len(t.recent))
	copy(out, t.recent)
	return out
}
