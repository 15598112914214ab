package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotLoaded indicates an engine call before a successful Load.
var ErrNotLoaded = errors.New("engine not loaded")

// ErrClosed indicates an engine call after Close.
var ErrClosed = errors.New("engine closed")

// ErrInvalidEntry indicates an entry name that is not a plain file name.
var ErrInvalidEntry = errors.New("invalid entry name")

// ErrExecFailed indicates an engine invocation exited unsuccessfully.
var ErrExecFailed = errors.New("engine invocation failed")

// ErrReset indicates the session was reset while an engine was loading.
var ErrReset = errors.New("engine session reset")

// ErrEngineLoad indicates no runtime configuration could be loaded.
var ErrEngineLoad = errors.New("failed to load engine")

// Attempt records why one runtime configuration failed to load.
type Attempt struct {
	Config string
	Err    error
}

// EngineLoadError aggregates every failed runtime configuration, fallback included.
type EngineLoadError struct {
	Attempts []Attempt
}

func (e *EngineLoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v after %d attempt(s)", ErrEngineLoad, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s: %v", a.Config, a.Err)
	}
	b.WriteString("\nCheck your connection or run \"audiosplit engine install\", then try again.")
	return b.String()
}

// Unwrap lets errors.Is(err, ErrEngineLoad) match.
func (e *EngineLoadError) Unwrap() error { return ErrEngineLoad }
