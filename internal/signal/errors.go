package signal

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError means a backend cannot be built or reached because of
// missing credentials, paths or settings. It is fatal at construction and
// never raised for transient call failures.
type ConfigurationError struct {
	Backend string
	Reason  string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("%s backend misconfigured: %s", e.Backend, e.Reason)
}

// PlanningError wraps a reachable backend's decision failure.
type PlanningError struct {
	Backend string
	Err     error
}

func (e PlanningError) Error() string {
	return fmt.Sprintf("%s backend planning failed: %v", e.Backend, e.Err)
}

func (e PlanningError) Unwrap() error { return e.Err }

// TimeoutError means the backend did not respond within its configured
// timeout.
type TimeoutError struct {
	Backend string
	Timeout time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("%s backend timed out after %v", e.Backend, e.Timeout)
}

// MalformedOutputError means the backend responded but nothing parseable came
// out of the extraction chain. Raw holds a truncated copy for diagnostics.
type MalformedOutputError struct {
	Backend string
	Raw     string
}

func (e MalformedOutputError) Error() string {
	return fmt.Sprintf("%s backend returned unparseable output: %s", e.Backend, truncate(e.Raw, 200))
}

// ExitError means the CLI subprocess exited non-zero. Stderr carries the
// truncated error stream.
type ExitError struct {
	Code   int
	Stderr string
}

func (e ExitError) Error() string {
	return fmt.Sprintf("reasoning process exited with code %d: %s", e.Code, truncate(e.Stderr, 400))
}

// IsTimeout reports whether err is a backend timeout.
func IsTimeout(err error) bool {
	var te TimeoutError
	return errors.As(err, &te)
}

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool {
	var ce ConfigurationError
	return errors.As(err, &ce)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
