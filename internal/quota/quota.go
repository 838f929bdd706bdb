package quota

import (
	"sync"
	"time"
)

// Tracker is the process-wide daily tool budget. The key is the UTC date; the
// counter resets to zero on the first access of a new day. Each permitted
// executor turn consumes exactly one unit regardless of how many tools run in
// that turn.
type Tracker struct {
	mu    sync.Mutex
	limit int
	day   string
	used  int
	now   func() time.Time
}

// NewTracker creates a tracker with the given daily limit. A limit <= 0 means
// unlimited.
func NewTracker(limit int) *Tracker {
	return &Tracker{limit: limit, now: time.Now}
}

// Allow consumes one unit if the budget for the current UTC day permits it.
// The rollover check and the increment happen under one lock so concurrent
// events cannot race a reset.
func (t *Tracker) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()
	if t.limit > 0 && t.used >= t.limit {
		return false
	}
	t.used++
	return true
}

// Remaining reports how many units are left for the current UTC day. Negative
// means unlimited.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()
	if t.limit <= 0 {
		return -1
	}
	return t.limit - t.used
}

// Used reports units consumed today.
func (t *Tracker) Used() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()
	return t.used
}

func (t *Tracker) roll() {
	day := t.now().UTC().Format("2006-01-02")
	if day != t.day {
		t.day = day
		t.used = 0
	}
}
