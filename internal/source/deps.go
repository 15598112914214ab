package source

import (
	"context"
	"io"
	"os"

	"github.com/shirou/gopsutil/v4/mem"
)

// fileOpener abstracts the filesystem reads Open performs.
type fileOpener interface {
	Stat(name string) (os.FileInfo, error)
	Open(name string) (io.ReadSeekCloser, error)
}

// memoryReader reports available system memory in bytes.
type memoryReader func(ctx context.Context) (uint64, error)

var _ fileOpener = osFileOpener{}

type osFileOpener struct{}

func (osFileOpener) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (osFileOpener) Open(name string) (io.ReadSeekCloser, error) {
	// #nosec G304 -- the user selected this file
	return os.Open(name)
}

func availableMemory(ctx context.Context) (uint64, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return v.Available, nil
}
