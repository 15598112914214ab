package ffmpeg

import (
	"io"
	"net/http"
	"os"
	"os/exec"
)

// fileSystem is the slice of the os package the resolver and installer touch.
type fileSystem interface {
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	Open(name string) (io.ReadCloser, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Chmod(name string, mode os.FileMode) error
	CreateTemp(dir, pattern string) (*os.File, error)
}

// httpDoer abstracts HTTP client operations.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// envProvider abstracts environment and PATH lookups.
type envProvider interface {
	Getenv(key string) string
	UserHomeDir() (string, error)
	LookPath(file string) (string, error)
}

var (
	_ fileSystem  = osFileSystem{}
	_ envProvider = osEnvProvider{}
)

type osFileSystem struct{}

func (osFileSystem) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (osFileSystem) ReadFile(name string) ([]byte, error) {
	// #nosec G304 -- paths come from source probing, not user input
	return os.ReadFile(name)
}

func (osFileSystem) Open(name string) (io.ReadCloser, error) {
	// #nosec G304 -- paths come from source probing, not user input
	return os.Open(name)
}

func (osFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (osFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (osFileSystem) Remove(name string) error                     { return os.Remove(name) }
func (osFileSystem) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (osFileSystem) Chmod(name string, mode os.FileMode) error    { return os.Chmod(name, mode) }

func (osFileSystem) CreateTemp(dir, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}

type osEnvProvider struct{}

func (osEnvProvider) Getenv(key string) string             { return os.Getenv(key) }
func (osEnvProvider) UserHomeDir() (string, error)         { return os.UserHomeDir() }
func (osEnvProvider) LookPath(file string) (string, error) { return exec.LookPath(file) }
