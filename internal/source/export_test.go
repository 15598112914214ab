package source

import (
	"context"
	"io"
	"os"
)

// Export internals for testing.
// This file is only compiled during tests (suffix _test.go).

// FileOpener exports the fileOpener interface for testing.
type FileOpener interface {
	Stat(name string) (os.FileInfo, error)
	Open(name string) (io.ReadSeekCloser, error)
}

// WithFileOpener sets the filesystem implementation.
func WithFileOpener(fs FileOpener) OpenerOption {
	return func(o *Opener) { o.fs = fs }
}

// WithMemory sets the available-memory reader.
func WithMemory(fn func(ctx context.Context) (uint64, error)) OpenerOption {
	return func(o *Opener) { o.memory = fn }
}
