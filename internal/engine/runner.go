package engine

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Result is the outcome of one child process.
type Result struct {
	ExitCode int // -1 when the process could not start or was killed.
	Stdout   []byte
	Stderr   []byte
	Err      error // Start/wait error, nil on exit 0.
	Duration time.Duration
}

// Runner executes an engine binary. The prober and the converter depend on
// this interface so tests can script the engine's behavior.
type Runner interface {
	Run(ctx context.Context, name string, args []string) Result
}

// RunnerFunc adapts a function to [Runner].
type RunnerFunc func(ctx context.Context, name string, args []string) Result

func (f RunnerFunc) Run(ctx context.Context, name string, args []string) Result {
	return f(ctx, name, args)
}

// DefaultWaitDelay bounds how long Wait keeps draining pipes after the
// process has been killed.
const DefaultWaitDelay = 5 * time.Second

// ExecRunner runs binaries with os/exec. The child never opens a console
// window on Windows; on Unix it gets its own process group so cancellation
// kills any helpers it spawned as well.
type ExecRunner struct {
	WaitDelay time.Duration
}

// Run starts name with args and waits for it. Cancelling ctx kills the child.
func (r ExecRunner) Run(ctx context.Context, name string, args []string) Result {
	cmd := exec.CommandContext(ctx, name, args...)
	hideWindow(cmd)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		ExitCode: exitCode(err),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Err:      err,
		Duration: time.Since(start),
	}
	if ctx.Err() != nil && err != nil {
		res.ExitCode = -1
	}
	return res
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
