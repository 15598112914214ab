// Package artifact tracks short-lived on-disk byte payloads ("refs") created while
// loading the engine and producing output parts, and guarantees each one is released
// exactly once: either right after use or in a final RevokeAll sweep.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Ref is a revocable reference to a materialized byte payload.
// The zero value refers to nothing.
type Ref struct {
	id   uint64
	path string
	size int64
}

// Path returns the filesystem location of the payload.
func (r Ref) Path() string { return r.path }

// Size returns the payload size in bytes at materialization time.
func (r Ref) Size() int64 { return r.size }

// IsZero reports whether r refers to nothing.
func (r Ref) IsZero() bool { return r.id == 0 }

// Registry owns every Ref it creates or tracks.
// It is safe for concurrent use.
type Registry struct {
	dir    string
	fs     fileSystem
	logger hclog.Logger

	mu     sync.Mutex
	nextID uint64
	refs   map[uint64]Ref
}

// Option configures a Registry.
type Option func(*Registry)

// WithDir sets the directory new refs are materialized in.
// Default: os.TempDir().
func WithDir(dir string) Option {
	return func(r *Registry) { r.dir = dir }
}

// WithLogger sets the logger used for release failures.
func WithLogger(l hclog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// withFileSystem sets the filesystem implementation (tests only).
func withFileSystem(fs fileSystem) Option {
	return func(r *Registry) { r.fs = fs }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		dir:    os.TempDir(),
		fs:     osFileSystem{},
		logger: hclog.NewNullLogger(),
		refs:   make(map[uint64]Ref),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Materialize copies src into a new file and registers it.
// pattern follows os.CreateTemp. perm is applied after the copy completes.
// On failure nothing is registered and the partial file is removed.
func (r *Registry) Materialize(src io.Reader, pattern string, perm os.FileMode) (Ref, error) {
	f, err := r.fs.CreateTemp(r.dir, pattern)
	if err != nil {
		return Ref{}, fmt.Errorf("create ref: %w", err)
	}
	path := f.Name()

	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = r.fs.Remove(path) // best-effort cleanup; original error takes precedence
		return Ref{}, fmt.Errorf("write ref %s: %w", path, err)
	}

	if err := r.fs.Chmod(path, perm); err != nil {
		_ = r.fs.Remove(path)
		return Ref{}, fmt.Errorf("chmod ref %s: %w", path, err)
	}

	return r.register(path, n), nil
}

// Track registers an existing file so that it is released by RevokeAll.
func (r *Registry) Track(path string) Ref {
	var size int64
	if info, err := r.fs.Stat(path); err == nil {
		size = info.Size()
	}
	return r.register(path, size)
}

func (r *Registry) register(path string, size int64) Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ref := Ref{id: r.nextID, path: path, size: size}
	r.refs[ref.id] = ref
	return ref
}

// Open returns a reader over the payload of a live ref.
func (r *Registry) Open(ref Ref) (io.ReadCloser, error) {
	if ref.IsZero() {
		return nil, ErrEmptyRef
	}
	return r.fs.Open(ref.path)
}

// Revoke releases ref immediately and removes it from the registry.
// Revoking an unknown or already revoked ref is a no-op.
func (r *Registry) Revoke(ref Ref) error {
	r.mu.Lock()
	_, ok := r.refs[ref.id]
	delete(r.refs, ref.id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return r.release(ref)
}

// RevokeAll releases every registered ref and clears the registry.
// Individual failures are logged and do not stop the sweep.
// Returns the number of refs released without error.
func (r *Registry) RevokeAll() int {
	r.mu.Lock()
	refs := make([]Ref, 0, len(r.refs))
	for _, ref := range r.refs {
		refs = append(refs, ref)
	}
	clear(r.refs)
	r.mu.Unlock()

	released := 0
	for _, ref := range refs {
		if err := r.release(ref); err != nil {
			r.logger.Warn("failed to release artifact", "path", ref.path, "error", err)
			continue
		}
		released++
	}
	return released
}

// Len returns the number of live refs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}

// Live reports whether ref is still registered.
func (r *Registry) Live(ref Ref) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.refs[ref.id]
	return ok
}

func (r *Registry) release(ref Ref) error {
	if err := r.fs.Remove(ref.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release %s: %w", ref.path, err)
	}
	return nil
}
