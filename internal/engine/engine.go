// Package engine runs the FFmpeg engine inside a private working storage and
// manages its lifecycle: module resolution, runtime loading with fallback, and reset.
package engine

import (
	"context"
	"io"

	"github.com/alnah/go-audiosplit/internal/artifact"
)

// Engine is the capability surface the splitter drives.
// Entry names are plain file names inside the engine's working storage.
type Engine interface {
	// Load installs the runtime binary. Every other call fails with ErrNotLoaded before it.
	Load(ctx context.Context, cfg LoadConfig) error
	WriteEntry(ctx context.Context, name string, r io.Reader) error
	// Exec runs one invocation with args relative to working storage.
	Exec(ctx context.Context, args []string) error
	ReadEntry(ctx context.Context, name string) ([]byte, error)
	OpenEntry(ctx context.Context, name string) (io.ReadCloser, error)
	DeleteEntry(ctx context.Context, name string) error
	// OnLog subscribes fn to every diagnostic line the engine emits.
	OnLog(fn func(line string))
	// Close releases working storage.
	Close() error
}

// LoadConfig selects the runtime binary to load.
type LoadConfig struct {
	Binary artifact.Ref
}
