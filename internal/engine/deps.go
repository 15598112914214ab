package engine

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// commandRunner runs a command in dir, streaming its stderr to w.
type commandRunner interface {
	Run(ctx context.Context, dir, name string, args []string, stderr io.Writer) error
}

// storageFS is the filesystem surface behind working storage.
type storageFS interface {
	MkdirAll(path string, perm os.FileMode) error
	Create(name string) (io.WriteCloser, error)
	Open(name string) (io.ReadCloser, error)
	ReadFile(name string) ([]byte, error)
	Remove(name string) error
	RemoveAll(path string) error
}

var (
	_ commandRunner = osCommandRunner{}
	_ storageFS     = osStorageFS{}
)

type osCommandRunner struct{}

func (osCommandRunner) Run(ctx context.Context, dir, name string, args []string, stderr io.Writer) error {
	// #nosec G204 -- name is the loaded engine binary, args are built by the splitter
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	return cmd.Run()
}

type osStorageFS struct{}

func (osStorageFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (osStorageFS) Create(name string) (io.WriteCloser, error) {
	// #nosec G304 -- name is validated to live inside working storage
	return os.Create(name)
}

func (osStorageFS) Open(name string) (io.ReadCloser, error) {
	// #nosec G304 -- name is validated to live inside working storage
	return os.Open(name)
}

func (osStorageFS) ReadFile(name string) ([]byte, error) {
	// #nosec G304 -- name is validated to live inside working storage
	return os.ReadFile(name)
}

func (osStorageFS) Remove(name string) error    { return os.Remove(name) }
func (osStorageFS) RemoveAll(path string) error { return os.RemoveAll(path) }
