package signal

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/marketpulse/deepsignal/config"
)

// CLIPlanner shells out to an external reasoning engine per invocation. The
// prompt goes to the process's stdin; all of stdout is the response. A hard
// wall-clock timeout kills the subprocess so nothing is left orphaned.
type CLIPlanner struct {
	binary  string
	args    []string
	workDir string
	timeout time.Duration
	logger  *log.Logger
}

func NewCLIPlanner(cfg config.CLIBackendConfig) (*CLIPlanner, error) {
	if cfg.Binary == "" {
		return nil, ConfigurationError{Backend: "cli", Reason: "binary not set"}
	}
	if _, err := exec.LookPath(cfg.Binary); err != nil {
		return nil, ConfigurationError{Backend: "cli", Reason: "binary not found: " + cfg.Binary}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &CLIPlanner{
		binary:  cfg.Binary,
		args:    cfg.Args,
		workDir: cfg.WorkDir,
		timeout: timeout,
		logger:  log.New(log.Writer(), "[CLI-PLANNER] ", log.LstdFlags),
	}, nil
}

// Backend identifies this planner in errors and logs.
func (p *CLIPlanner) Backend() string { return BackendCLI }

func (p *CLIPlanner) Plan(ctx context.Context, state *State, availableTools []string) (ToolPlan, error) {
	raw, err := p.run(ctx, buildPlanPrompt(state, availableTools))
	if err != nil {
		return ToolPlan{}, err
	}
	plan := ToolPlan{Confidence: 1.0}
	if err := decodeJSON("cli", raw, &plan); err != nil {
		return ToolPlan{}, err
	}
	return plan, nil
}

func (p *CLIPlanner) Synthesize(ctx context.Context, state *State) (string, error) {
	raw, err := p.run(ctx, buildSynthesisPrompt(state))
	if err != nil {
		return "", err
	}
	return extractJSONString("cli", raw)
}

// run executes one subprocess round trip. CommandContext kills the process on
// deadline, which is what distinguishes a timeout from a crash.
func (p *CLIPlanner) run(ctx context.Context, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.binary, p.args...)
	if p.workDir != "" {
		cmd.Dir = p.workDir
	}
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", TimeoutError{Backend: "cli", Timeout: p.timeout}
		}
		if errors.Is(err, exec.ErrNotFound) {
			// Binary vanished after construction (PATH change, deleted file).
			return "", ConfigurationError{Backend: "cli", Reason: "binary not found: " + p.binary}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", PlanningError{Backend: "cli", Err: err}
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", MalformedOutputError{Backend: "cli", Raw: "empty stdout"}
	}
	p.logger.Printf("reasoning process finished in %v (%d bytes)", time.Since(start).Round(time.Millisecond), len(out))
	return out, nil
}
