//go:build !windows

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_CapturesOutputAndExitCode(t *testing.T) {
	res := ExecRunner{}.Run(context.Background(), "sh", []string{"-c", "echo out; echo err >&2; exit 3"})

	require.Error(t, res.Err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestExecRunner_Success(t *testing.T) {
	res := ExecRunner{}.Run(context.Background(), "sh", []string{"-c", "true"})
	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	res := ExecRunner{}.Run(context.Background(), "/nonexistent/hz432-engine", nil)
	require.Error(t, res.Err)
	assert.Equal(t, -1, res.ExitCode)
}

func TestExecRunner_CancelKillsProcessGroup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// The background sleep would keep the stderr pipe open if only the
	// shell were killed.
	start := time.Now()
	res := ExecRunner{WaitDelay: time.Second}.Run(ctx, "sh", []string{"-c", "sleep 30 & sleep 30"})

	require.Error(t, res.Err)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunnerFunc(t *testing.T) {
	var gotName string
	r := RunnerFunc(func(_ context.Context, name string, _ []string) Result {
		gotName = name
		return Result{ExitCode: 7}
	})
	res := r.Run(context.Background(), "ffmpeg", nil)
	assert.Equal(t, "ffmpeg", gotName)
	assert.Equal(t, 7, res.ExitCode)
}
