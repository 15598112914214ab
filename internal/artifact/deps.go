package artifact

import (
	"io"
	"os"
)

// fileSystem abstracts the filesystem operations the registry performs.
type fileSystem interface {
	CreateTemp(dir, pattern string) (*os.File, error)
	Open(name string) (io.ReadCloser, error)
	Stat(name string) (os.FileInfo, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Link(oldname, newname string) error
	Chmod(name string, mode os.FileMode) error
}

// Compile-time interface verification.
var _ fileSystem = osFileSystem{}

// osFileSystem implements fileSystem using the os package.
type osFileSystem struct{}

func (osFileSystem) CreateTemp(dir, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}

func (osFileSystem) Open(name string) (io.ReadCloser, error) {
	// #nosec G304 -- paths are registry-owned temp files
	return os.Open(name)
}

func (osFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (osFileSystem) Remove(name string) error {
	return os.Remove(name)
}

func (osFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (osFileSystem) Link(oldname, newname string) error {
	return os.Link(oldname, newname)
}

func (osFileSystem) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(name, mode)
}
