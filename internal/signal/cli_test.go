package signal

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/marketpulse/deepsignal/config"
)

func shPlanner(t *testing.T, script string, timeout time.Duration) *CLIPlanner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	p, err := NewCLIPlanner(config.CLIBackendConfig{
		Binary:  "/bin/sh",
		Args:    []string{"-c", script},
		Timeout: timeout,
	})
	if err != nil {
		t.Fatalf("constructing cli planner: %v", err)
	}
	return p
}

func cliTestState() *State {
	payload, prelim := testEvent(EventHack, "USDC")
	return NewState(payload, prelim, 3)
}

func TestNewCLIPlannerMissingBinary(t *testing.T) {
	_, err := NewCLIPlanner(config.CLIBackendConfig{Binary: "definitely-not-a-real-binary-xyz"})
	if !IsConfiguration(err) {
		t.Fatalf("missing binary must be a configuration error, got %v", err)
	}
}

func TestNewCLIPlannerEmptyBinary(t *testing.T) {
	_, err := NewCLIPlanner(config.CLIBackendConfig{})
	if !IsConfiguration(err) {
		t.Fatalf("empty binary must be a configuration error, got %v", err)
	}
}

func TestCLIPlannerPlan(t *testing.T) {
	p := shPlanner(t, `cat >/dev/null; echo '{"tools":["search"],"search_keywords":"USDC hack","reason":"confirm"}'`, 0)
	plan, err := p.Plan(context.Background(), cliTestState(), []string{"search", "price"})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(plan.Tools) != 1 || plan.Tools[0] != "search" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.SearchKeywords != "USDC hack" {
		t.Fatalf("unexpected keywords: %q", plan.SearchKeywords)
	}
}

func TestCLIPlannerProseWrappedOutput(t *testing.T) {
	p := shPlanner(t, `cat >/dev/null; echo 'My analysis follows.'; echo '{"tools":[]}'; echo 'Nothing further.'`, 0)
	plan, err := p.Plan(context.Background(), cliTestState(), []string{"search"})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(plan.Tools) != 0 {
		t.Fatalf("expected empty tool list, got %+v", plan.Tools)
	}
}

func TestCLIPlannerNonZeroExit(t *testing.T) {
	p := shPlanner(t, `cat >/dev/null; echo 'model crashed' >&2; exit 3`, 0)
	_, err := p.Plan(context.Background(), cliTestState(), []string{"search"})
	var ee ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("want ExitError, got %v", err)
	}
	if ee.Code != 3 {
		t.Fatalf("want exit code 3, got %d", ee.Code)
	}
	if ee.Stderr == "" {
		t.Fatal("exit error must carry stderr")
	}
}

func TestCLIPlannerTimeout(t *testing.T) {
	p := shPlanner(t, `sleep 5`, 100*time.Millisecond)
	start := time.Now()
	_, err := p.Plan(context.Background(), cliTestState(), []string{"search"})
	if !IsTimeout(err) {
		t.Fatalf("want timeout error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout did not kill the subprocess promptly")
	}
}

func TestCLIPlannerEmptyOutput(t *testing.T) {
	p := shPlanner(t, `cat >/dev/null`, 0)
	_, err := p.Plan(context.Background(), cliTestState(), []string{"search"})
	var moe MalformedOutputError
	if !errors.As(err, &moe) {
		t.Fatalf("want MalformedOutputError for empty stdout, got %v", err)
	}
}

func TestCLIPlannerSynthesize(t *testing.T) {
	p := shPlanner(t, `cat >/dev/null; echo 'Final verdict:'; echo '{"summary":"s","confidence":0.7}'`, 0)
	raw, err := p.Synthesize(context.Background(), cliTestState())
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if raw != `{"summary":"s","confidence":0.7}` {
		t.Fatalf("unexpected synthesis output: %q", raw)
	}
}
