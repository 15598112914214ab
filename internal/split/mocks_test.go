package split_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/alnah/go-audiosplit/internal/engine"
	"github.com/alnah/go-audiosplit/internal/split"
)

// ---------------------------------------------------------------------------
// fakeEngine - in-memory working storage with scripted FFmpeg behavior
// ---------------------------------------------------------------------------

// fakeEngine converts any input to a fixed "output.mp3" and cuts parts whose size
// is bytesPerSecond times the audio they cover, measured against audioLength.
type fakeEngine struct {
	audioLength    time.Duration
	bytesPerSecond int
	convertErr     error
	failSlice      int  // 1-based slice invocation that fails, 0 for none
	emptyPastEnd   bool // slicing past the end yields an empty file instead of an error
	silentPastEnd  bool // slicing past the end succeeds without writing the part
	started        chan struct{}
	block          chan struct{}

	mu      sync.Mutex
	entries map[string][]byte
	execs   [][]string
	slices  int
	deleted []string
}

var _ engine.Engine = (*fakeEngine)(nil)

func newFakeEngine(length time.Duration) *fakeEngine {
	return &fakeEngine{
		audioLength:    length,
		bytesPerSecond: 10,
		entries:        make(map[string][]byte),
	}
}

func (e *fakeEngine) Load(context.Context, engine.LoadConfig) error { return nil }

func (e *fakeEngine) WriteEntry(_ context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[name] = data
	return nil
}

func (e *fakeEngine) Exec(ctx context.Context, args []string) error {
	e.mu.Lock()
	e.execs = append(e.execs, slices.Clone(args))
	e.mu.Unlock()

	out := args[len(args)-1]
	if out == split.OutputEntry {
		return e.convert(ctx)
	}
	return e.slice(args, out)
}

func (e *fakeEngine) convert(ctx context.Context) error {
	if e.started != nil {
		close(e.started)
	}
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return fmt.Errorf("%w: killed", engine.ErrExecFailed)
		}
	}
	if e.convertErr != nil {
		return e.convertErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entries[split.InputEntry]; !ok {
		return fmt.Errorf("%w: input.mp4: No such file or directory", engine.ErrExecFailed)
	}
	e.entries[split.OutputEntry] = []byte("ID3 converted audio")
	return nil
}

func (e *fakeEngine) slice(args []string, out string) error {
	start := parseFFmpegTime(argAfter(args, "-ss"))
	length := parseFFmpegTime(argAfter(args, "-t"))

	e.mu.Lock()
	defer e.mu.Unlock()
	e.slices++
	if e.failSlice != 0 && e.slices == e.failSlice {
		return fmt.Errorf("%w: scripted failure", engine.ErrExecFailed)
	}
	if start >= e.audioLength {
		if e.emptyPastEnd {
			e.entries[out] = nil
			return nil
		}
		if e.silentPastEnd {
			return nil
		}
		return fmt.Errorf("%w: Invalid argument", engine.ErrExecFailed)
	}
	covered := min(length, e.audioLength-start)
	e.entries[out] = make([]byte, int(covered.Seconds())*e.bytesPerSecond)
	return nil
}

func (e *fakeEngine) ReadEntry(_ context.Context, name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.entries[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return slices.Clone(data), nil
}

func (e *fakeEngine) OpenEntry(ctx context.Context, name string) (io.ReadCloser, error) {
	data, err := e.ReadEntry(ctx, name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (e *fakeEngine) DeleteEntry(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = append(e.deleted, name)
	delete(e.entries, name)
	return nil
}

func (e *fakeEngine) OnLog(func(string)) {}

func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) entryNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.entries))
	for name := range e.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (e *fakeEngine) sliceArgs() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out [][]string
	for _, args := range e.execs {
		if args[len(args)-1] != split.OutputEntry {
			out = append(out, args)
		}
	}
	return out
}

func (e *fakeEngine) conversions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, args := range e.execs {
		if args[len(args)-1] == split.OutputEntry {
			n++
		}
	}
	return n
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func parseFFmpegTime(s string) time.Duration {
	var h, m int
	var sec float64
	if _, err := fmt.Sscanf(s, "%d:%d:%f", &h, &m, &sec); err != nil {
		return 0
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second))
}

// ---------------------------------------------------------------------------
// fakeSession
// ---------------------------------------------------------------------------

type fakeSession struct {
	eng engine.Engine

	mu       sync.Mutex
	loadErrs []error // consumed one per EnsureLoaded call
	loads    int
	resets   int
}

func (s *fakeSession) EnsureLoaded(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if len(s.loadErrs) == 0 {
		return nil
	}
	err := s.loadErrs[0]
	s.loadErrs = s.loadErrs[1:]
	return err
}

func (s *fakeSession) Engine() engine.Engine { return s.eng }

func (s *fakeSession) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	return nil
}

func (s *fakeSession) counts() (loads, resets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads, s.resets
}

// ---------------------------------------------------------------------------
// fakeProbe
// ---------------------------------------------------------------------------

type fakeProbe struct {
	stream      time.Duration
	streamKnown bool
	file        time.Duration
	fileKnown   bool

	mu    sync.Mutex
	files []string
}

func (p *fakeProbe) Reader(_ context.Context, r io.Reader) (time.Duration, bool) {
	_, _ = io.Copy(io.Discard, r)
	return p.stream, p.streamKnown
}

func (p *fakeProbe) File(_ context.Context, path string) (time.Duration, bool) {
	p.mu.Lock()
	p.files = append(p.files, path)
	p.mu.Unlock()
	return p.file, p.fileKnown
}

// ---------------------------------------------------------------------------
// fakeInput
// ---------------------------------------------------------------------------

type fakeInput struct {
	base    string
	data    string
	openErr error
}

func (in fakeInput) BaseName() string { return in.base }

func (in fakeInput) Open() (io.ReadCloser, error) {
	if in.openErr != nil {
		return nil, in.openErr
	}
	return io.NopCloser(bytes.NewReader([]byte(in.data))), nil
}

// ---------------------------------------------------------------------------
// progressRecorder
// ---------------------------------------------------------------------------

type progressRecorder struct {
	mu      sync.Mutex
	updates []split.Progress
}

func (r *progressRecorder) record(p split.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, p)
}

func (r *progressRecorder) all() []split.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.updates)
}

var errScripted = errors.New("scripted")
