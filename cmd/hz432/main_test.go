package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/backmassage/hz432/internal/engine"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, exitOK},
		{"failures", errFailures, exitFailures},
		{"engine missing", fmt.Errorf("%w (searched 0 locations)", engine.ErrEngineNotFound), exitEngineNotFound},
		{"other", errors.New("bad flag"), exitFailures},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stderr bytes.Buffer
			assert.Equal(t, tc.want, exitCode(tc.err, &stderr))
			if tc.err == nil || errors.Is(tc.err, errFailures) {
				assert.Empty(t, stderr.String())
			} else {
				assert.Contains(t, stderr.String(), "hz432: ")
			}
		})
	}
}

func TestExecute_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitOK, execute([]string{"version"}, &stdout, &stderr))
	assert.Equal(t, fmt.Sprintf("hz432 %s (%s)\n", version, commit), stdout.String())
}

func TestExecute_TooManyArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitFailures, execute([]string{"a", "b", "c"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "hz432: ")
}

func TestExecute_EngineNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	in := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := execute([]string{"--color", "never", "--ffmpeg", t.TempDir(), in}, &stdout, &stderr)
	assert.Equal(t, exitEngineNotFound, code)
	assert.Contains(t, stderr.String(), "--ffmpeg")
}

func TestExecute_InvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"--jobs", "0", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, exitFailures, code)
	assert.Contains(t, stderr.String(), "jobs must be at least 1")
}

func TestExecute_InvalidLogLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"--log-level", "loud", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, exitFailures, code)
	assert.Contains(t, stderr.String(), `invalid log level "loud"`)
}
