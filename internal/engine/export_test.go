package engine

import (
	"context"
	"io"
)

// Export internals for testing.
// This file is only compiled during tests (suffix _test.go).

// RunFunc adapts a function to the commandRunner interface.
type RunFunc func(ctx context.Context, dir, name string, args []string, stderr io.Writer) error

// Run implements commandRunner.
func (f RunFunc) Run(ctx context.Context, dir, name string, args []string, stderr io.Writer) error {
	return f(ctx, dir, name, args, stderr)
}

// WithCommandRunner exports withCommandRunner for testing.
func WithCommandRunner(fn RunFunc) ProcessOption { return withCommandRunner(fn) }

// NewLineWriter exports the stderr line splitter.
func NewLineWriter(keep int, subs ...func(string)) interface {
	io.Writer
	Flush()
	Tail() string
} {
	return newLineWriter(keep, subs)
}
