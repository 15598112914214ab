package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/alnah/go-audiosplit/internal/artifact"
)

const (
	storageDirPerm = 0o700

	// stderrTailLines is how much engine output an ErrExecFailed carries.
	stderrTailLines = 8
)

// baseArgs precede every invocation: quiet banner, never read stdin, overwrite entries.
var baseArgs = []string{"-hide_banner", "-nostdin", "-y"}

// Process is an Engine backed by an FFmpeg executable.
// Working storage is a private directory that only this Process touches.
type Process struct {
	runner  commandRunner
	fs      storageFS
	baseDir string

	mu     sync.Mutex
	dir    string
	binary string
	subs   []func(string)
	closed bool
}

var _ Engine = (*Process)(nil)

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithBaseDir sets where working storage is created. Default: os.TempDir().
func WithBaseDir(dir string) ProcessOption {
	return func(p *Process) { p.baseDir = dir }
}

// withCommandRunner sets the command runner (tests only).
func withCommandRunner(r commandRunner) ProcessOption {
	return func(p *Process) { p.runner = r }
}

// NewProcess creates working storage "audiosplit-<uuid>" under the base directory.
func NewProcess(opts ...ProcessOption) (*Process, error) {
	p := &Process{
		runner:  osCommandRunner{},
		fs:      osStorageFS{},
		baseDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.dir = filepath.Join(p.baseDir, "audiosplit-"+uuid.NewString())
	if err := p.fs.MkdirAll(p.dir, storageDirPerm); err != nil {
		return nil, fmt.Errorf("create working storage: %w", err)
	}
	return p, nil
}

// Dir returns the working storage directory.
func (p *Process) Dir() string { return p.dir }

// Load verifies the binary answers "-version" and adopts it for Exec.
func (p *Process) Load(ctx context.Context, cfg LoadConfig) error {
	if cfg.Binary.IsZero() {
		return fmt.Errorf("load: %w", artifact.ErrEmptyRef)
	}
	if err := p.check(false); err != nil {
		return err
	}

	var out bytes.Buffer
	if err := p.runner.Run(ctx, p.dir, cfg.Binary.Path(), []string{"-version"}, &out); err != nil {
		return fmt.Errorf("verify engine %s: %w", cfg.Binary.Path(), err)
	}

	p.mu.Lock()
	p.binary = cfg.Binary.Path()
	p.mu.Unlock()
	return nil
}

// WriteEntry copies r into working storage under name.
func (p *Process) WriteEntry(ctx context.Context, name string, r io.Reader) error {
	path, err := p.entryPath(ctx, name)
	if err != nil {
		return err
	}

	f, err := p.fs.Create(path)
	if err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	if _, err := io.Copy(f, contextReader{ctx: ctx, r: r}); err != nil {
		_ = f.Close()
		_ = p.fs.Remove(path)
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// Exec runs the engine with args in working storage.
func (p *Process) Exec(ctx context.Context, args []string) error {
	if err := p.check(true); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	binary := p.binary
	subs := append([]func(string){}, p.subs...)
	p.mu.Unlock()

	lw := newLineWriter(stderrTailLines, subs)
	full := append(append([]string{}, baseArgs...), args...)
	err := p.runner.Run(ctx, p.dir, binary, full, lw)
	lw.Flush()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v\n%s", ErrExecFailed, err, lw.Tail())
	}
	return nil
}

// ReadEntry returns the full content of an entry.
func (p *Process) ReadEntry(ctx context.Context, name string) ([]byte, error) {
	path, err := p.entryPath(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := p.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", name, err)
	}
	return data, nil
}

// OpenEntry returns a stream over an entry.
func (p *Process) OpenEntry(ctx context.Context, name string) (io.ReadCloser, error) {
	path, err := p.entryPath(ctx, name)
	if err != nil {
		return nil, err
	}
	rc, err := p.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", name, err)
	}
	return rc, nil
}

// DeleteEntry removes an entry.
func (p *Process) DeleteEntry(ctx context.Context, name string) error {
	path, err := p.entryPath(ctx, name)
	if err != nil {
		return err
	}
	if err := p.fs.Remove(path); err != nil {
		return fmt.Errorf("delete entry %s: %w", name, err)
	}
	return nil
}

// OnLog subscribes fn to engine diagnostic lines.
func (p *Process) OnLog(fn func(line string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

// Close removes working storage. Further calls fail with ErrClosed.
func (p *Process) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.binary = ""
	p.mu.Unlock()

	if err := p.fs.RemoveAll(p.dir); err != nil {
		return fmt.Errorf("remove working storage: %w", err)
	}
	return nil
}

func (p *Process) check(needLoaded bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if needLoaded && p.binary == "" {
		return ErrNotLoaded
	}
	return nil
}

func (p *Process) entryPath(ctx context.Context, name string) (string, error) {
	if err := p.check(true); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ValidEntryName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntry, name)
	}
	return filepath.Join(p.dir, name), nil
}

// ValidEntryName reports whether name is a plain file name.
func ValidEntryName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

// contextReader stops a long copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// ---------------------------------------------------------------------------
// lineWriter
// ---------------------------------------------------------------------------

// lineWriter splits engine stderr on '\n' and '\r' (progress updates), hands every
// non-empty line to the subscribers and keeps the last few for error reports.
type lineWriter struct {
	subs []func(string)
	max  int
	buf  []byte
	tail []string
}

func newLineWriter(keep int, subs []func(string)) *lineWriter {
	return &lineWriter{subs: subs, max: keep}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		w.emit(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.emit(string(w.buf))
		w.buf = nil
	}
}

// Tail returns the retained lines joined by newlines.
func (w *lineWriter) Tail() string {
	return strings.Join(w.tail, "\n")
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	for _, fn := range w.subs {
		fn(line)
	}
	w.tail = append(w.tail, line)
	if len(w.tail) > w.max {
		w.tail = w.tail[1:]
	}
}
