package split

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-audiosplit/internal/artifact"
	"github.com/alnah/go-audiosplit/internal/source"
)

// fileOpener applies the acceptance policy to a path.
type fileOpener interface {
	Open(ctx context.Context, path string) (source.File, error)
}

// durationProbe measures files and streams.
type durationProbe interface {
	streamProbe
	File(ctx context.Context, path string) (time.Duration, bool)
}

// resettableLoader is the engine session as seen by the Controller.
type resettableLoader interface {
	loader
	Reset() error
}

// Info describes the selected file once background probing has finished.
type Info struct {
	File          source.File
	Duration      time.Duration
	Known         bool
	ExpectedParts int // zero when the duration is unknown
}

// Controller wires user actions to the engine session and orchestrator.
// It holds at most one selected file.
type Controller struct {
	opener   fileOpener
	session  resettableLoader
	probe    durationProbe
	registry *artifact.Registry
	orch     *Orchestrator
	opts     Options
	logger   hclog.Logger

	mu       sync.Mutex
	file     *source.File
	bg       *errgroup.Group
	preload  chan struct{}
	duration time.Duration
	known    bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the logger for background task failures.
func WithControllerLogger(l hclog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a Controller. opts are validated.
func NewController(opener fileOpener, session resettableLoader, probe durationProbe, registry *artifact.Registry, opts Options, options ...ControllerOption) (*Controller, error) {
	c := &Controller{
		opener:   opener,
		session:  session,
		probe:    probe,
		registry: registry,
		opts:     opts,
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range options {
		opt(c)
	}
	orch, err := NewOrchestrator(session, probe, registry, opts, WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	c.orch = orch
	return c, nil
}

// Select accepts the file at path and starts engine preload and duration probing
// in the background. A file above the soft size limit is only kept when confirm
// returns true; a nil confirm declines.
func (c *Controller) Select(ctx context.Context, path string, confirm func(source.File) bool) (source.File, error) {
	f, err := c.opener.Open(ctx, path)
	if err != nil {
		return source.File{}, err
	}
	if f.NeedsConfirmation() && (confirm == nil || !confirm(f)) {
		return source.File{}, source.ErrNotConfirmed
	}

	c.join()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = &f
	c.duration, c.known = 0, false

	preload := make(chan struct{})
	c.preload = preload
	c.bg = &errgroup.Group{}
	c.bg.Go(func() error {
		defer close(preload)
		if err := c.session.EnsureLoaded(ctx); err != nil {
			c.logger.Warn("engine preload failed, will load on process", "error", err)
		}
		return nil
	})
	c.bg.Go(func() error {
		d, ok := c.probe.File(ctx, f.Path)
		c.mu.Lock()
		c.duration, c.known = d, ok
		c.mu.Unlock()
		return nil
	})
	return f, nil
}

// Wait blocks until preload and probing are done and returns what is known about
// the selected file.
func (c *Controller) Wait(ctx context.Context) (Info, error) {
	c.mu.Lock()
	if c.file == nil {
		c.mu.Unlock()
		return Info{}, ErrNoFile
	}
	bg := c.bg
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- bg.Wait() }()
	select {
	case <-ctx.Done():
		return Info{}, ctx.Err()
	case err := <-done:
		if err != nil {
			return Info{}, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	info := Info{File: *c.file, Duration: c.duration, Known: c.known}
	if c.known {
		info.ExpectedParts = PartCount(c.duration, c.opts.SegmentLength)
	}
	return info, nil
}

// Process waits for the preload and runs the orchestrator on the selected file.
func (c *Controller) Process(ctx context.Context, onProgress ProgressFunc) ([]Task, error) {
	c.mu.Lock()
	if c.file == nil {
		c.mu.Unlock()
		return nil, ErrNoFile
	}
	f := *c.file
	preload := c.preload
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-preload:
	}
	return c.orch.Process(ctx, f, onProgress)
}

// Save writes every part of the last run into dir and returns the written paths.
// It keeps going after a failed part and reports all failures together.
func (c *Controller) Save(dir string, overwrite bool) ([]string, error) {
	tasks := c.orch.Tasks()
	if len(tasks) == 0 {
		return nil, nil
	}
	var (
		saved []string
		errs  []error
	)
	for _, t := range tasks {
		dest := filepath.Join(dir, t.Name)
		if err := c.registry.Save(t.Ref, dest, overwrite); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", t.Name, err))
			continue
		}
		saved = append(saved, dest)
	}
	return saved, errors.Join(errs...)
}

// Tasks returns the parts of the last successful run.
func (c *Controller) Tasks() []Task { return c.orch.Tasks() }

// Progress returns the latest progress of the orchestrator.
func (c *Controller) Progress() Progress { return c.orch.Progress() }

// Reset drops the selected file and every part, releases all artifacts and
// closes the engine.
func (c *Controller) Reset() {
	c.join()

	c.mu.Lock()
	c.file = nil
	c.bg = nil
	c.preload = nil
	c.duration, c.known = 0, false
	c.mu.Unlock()

	c.orch.Reset()
	if n := c.registry.RevokeAll(); n > 0 {
		c.logger.Debug("released artifacts", "count", n)
	}
	if err := c.session.Reset(); err != nil {
		c.logger.Warn("failed to reset engine", "error", err)
	}
}

// join waits for background tasks of a previous selection.
func (c *Controller) join() {
	c.mu.Lock()
	bg := c.bg
	c.mu.Unlock()
	if bg != nil {
		_ = bg.Wait()
	}
}
