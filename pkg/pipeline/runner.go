package pipeline

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// RunResult is the outcome of a single command invocation.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// CommandRunner abstracts process execution and working-directory state the
// way the original's IoContext does, so the executor can be driven against
// a real shell in production and a scripted double in tests.
type CommandRunner interface {
	Run(ctx context.Context, cmd []string, timeout time.Duration) (RunResult, error)
	Chdir(dir string) error
	Getwd() (string, error)
}

// OSRunner is the production CommandRunner, backed by os/exec and the real
// process working directory.
type OSRunner struct{}

// Run executes cmd, expanding environment variables in each argument the
// way exec_step does with os.path.expandvars. A zero timeout means no
// deadline is applied.
func (OSRunner) Run(ctx context.Context, cmd []string, timeout time.Duration) (RunResult, error) {
	expanded := make([]string, len(cmd))
	for i, arg := range cmd {
		expanded[i] = os.ExpandEnv(arg)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, expanded[0], expanded[1:]...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	timedOut := runCtx.Err() == context.DeadlineExceeded

	result := RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
	}
	if timedOut {
		return result, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// Chdir changes the process-wide working directory.
func (OSRunner) Chdir(dir string) error {
	return os.Chdir(dir)
}

// Getwd returns the process-wide working directory.
func (OSRunner) Getwd() (string, error) {
	return os.Getwd()
}

// RecordingRunner is a CommandRunner test double mirroring TestIoContext: it
// records every Run and Chdir call and returns canned results keyed by the
// joined command line and timeout, defaulting to a clean exit with no
// output.
type RecordingRunner struct {
	mu sync.Mutex

	// Predefs maps the command's args joined by "\x1f", then "|" and the
	// timeout's String form, to a canned RunResult (see SetResult).
	Predefs map[string]RunResult

	RunHistory   []RecordedRun
	ChdirHistory []string
	cwd          string
}

// RecordedRun captures one Run invocation for assertions in tests.
type RecordedRun struct {
	Cmd     []string
	Timeout time.Duration
}

// NewRecordingRunner returns a RecordingRunner with no canned results;
// every Run call succeeds with empty output unless Predefs says otherwise.
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{Predefs: map[string]RunResult{}}
}

func predefKey(cmd []string, timeout time.Duration) string {
	return strings.Join(cmd, "\x1f") + "|" + timeout.String()
}

// Run records the call and returns the canned result for this exact
// command and timeout, or a clean zero-exit result if none was registered.
func (r *RecordingRunner) Run(_ context.Context, cmd []string, timeout time.Duration) (RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RunHistory = append(r.RunHistory, RecordedRun{Cmd: cmd, Timeout: timeout})
	if result, ok := r.Predefs[predefKey(cmd, timeout)]; ok {
		return result, nil
	}
	return RunResult{}, nil
}

// Chdir records the destination and updates the simulated cwd.
func (r *RecordingRunner) Chdir(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ChdirHistory = append(r.ChdirHistory, dir)
	r.cwd = dir
	return nil
}

// Getwd returns the simulated cwd, empty until the first Chdir call.
func (r *RecordingRunner) Getwd() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cwd, nil
}

// SetResult registers a canned result for a given command and timeout,
// the way TestIoContext's predefs dict is populated in the original tests.
func (r *RecordingRunner) SetResult(cmd []string, timeout time.Duration, result RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Predefs[predefKey(cmd, timeout)] = result
}
