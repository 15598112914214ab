package ffmpeg

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// runOutputFn runs a command and returns what it wrote to stdout and stderr.
type runOutputFn func(ctx context.Context, path string, args []string) (string, error)

// Executor runs short FFmpeg queries (version, encoder list, probing).
type Executor struct {
	runOutput runOutputFn
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRunOutput sets a custom runOutput function (for testing).
func WithRunOutput(fn runOutputFn) ExecutorOption {
	return func(e *Executor) { e.runOutput = fn }
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		runOutput: defaultRunOutput,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOutput executes path and returns its combined output.
// Output is returned even on failure: FFmpeg reports useful data on non-zero exits.
func (e *Executor) RunOutput(ctx context.Context, path string, args []string) (string, error) {
	return e.runOutput(ctx, path, args)
}

// HasEncoder reports whether the binary at path lists the named encoder.
func (e *Executor) HasEncoder(ctx context.Context, path, encoder string) (bool, error) {
	out, err := e.runOutput(ctx, path, []string{"-hide_banner", "-encoders"})
	if err != nil && out == "" {
		return false, err
	}
	return listsEncoder(out, encoder), nil
}

// listsEncoder scans "-encoders" output, whose rows look like
// " A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3)".
func listsEncoder(output, encoder string) bool {
	for line := range strings.Lines(output) {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == encoder {
			return true
		}
	}
	return false
}

// defaultRunOutput captures stdout and stderr together: "-version" and "-encoders"
// print to stdout while diagnostics go to stderr.
func defaultRunOutput(ctx context.Context, path string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}
