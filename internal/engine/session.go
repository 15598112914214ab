package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/alnah/go-audiosplit/internal/artifact"
	"github.com/alnah/go-audiosplit/internal/ffmpeg"
)

const enginePerm = 0o700

// moduleResolver finds the local toolchain.
type moduleResolver interface {
	Resolve(ctx context.Context) (ffmpeg.Modules, error)
}

// fetcher opens the decoded bytes of a runtime asset.
type fetcher interface {
	Open(ctx context.Context, a ffmpeg.Asset) (io.ReadCloser, error)
}

// Factory constructs an unloaded engine instance.
type Factory func(m ffmpeg.Modules) (Engine, error)

// Session owns the single engine instance of a run and makes it ready on demand.
// It is safe for concurrent use; concurrent loads share one attempt.
type Session struct {
	resolver moduleResolver
	fetcher  fetcher
	registry *artifact.Registry
	factory  Factory
	logger   hclog.Logger
	configs  []RuntimeConfig
	fallback *RuntimeConfig

	group singleflight.Group

	mu      sync.Mutex
	engine  Engine
	modules ffmpeg.Modules
	created bool
	loaded  bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithFetcher sets how runtime assets are obtained.
func WithFetcher(f fetcher) SessionOption {
	return func(s *Session) { s.fetcher = f }
}

// WithFactory sets the engine constructor.
func WithFactory(f Factory) SessionOption {
	return func(s *Session) { s.factory = f }
}

// WithLogger sets the logger receiving engine output and load diagnostics.
func WithLogger(l hclog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithRuntimeConfigs replaces the default runtime list.
func WithRuntimeConfigs(configs ...RuntimeConfig) SessionOption {
	return func(s *Session) { s.configs = configs }
}

// WithFallback replaces the fixed fallback runtime.
func WithFallback(c RuntimeConfig) SessionOption {
	return func(s *Session) { s.fallback = &c }
}

// NewSession creates a Session. Runtime binaries are materialized in registry.
func NewSession(resolver moduleResolver, registry *artifact.Registry, opts ...SessionOption) *Session {
	s := &Session{
		resolver: resolver,
		registry: registry,
		fetcher:  ffmpeg.NewDownloader(),
		factory:  func(ffmpeg.Modules) (Engine, error) { return NewProcess() },
		logger:   hclog.NewNullLogger(),
		configs:  DefaultRuntimeConfigs(nil),
	}
	if fb, ok := FallbackRuntime(runtime.GOOS, runtime.GOARCH); ok {
		s.fallback = &fb
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureCreated resolves the toolchain and constructs the engine once.
func (s *Session) EnsureCreated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}

	m, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	eng, err := s.factory(m)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	logger := s.logger.Named("engine")
	eng.OnLog(func(line string) { logger.Trace(line) })

	s.engine = eng
	s.modules = m
	s.created = true
	return nil
}

// EnsureLoaded makes the engine ready, trying each runtime configuration in order and
// then the fixed fallback. A failure is returned, never retried; a later call starts over.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	if s.Loaded() {
		return nil
	}
	_, err, _ := s.group.Do("load", func() (any, error) {
		return nil, s.load(ctx)
	})
	return err
}

func (s *Session) load(ctx context.Context) error {
	if err := s.EnsureCreated(ctx); err != nil {
		return err
	}
	if s.Loaded() {
		return nil
	}

	s.mu.Lock()
	eng, modules := s.engine, s.modules
	s.mu.Unlock()

	var attempts []Attempt
	for _, cfg := range s.configs {
		if cfg.Threaded {
			s.logger.Debug("skipping threaded runtime", "config", cfg.Name)
			continue
		}
		if err := s.tryLoad(ctx, eng, modules, cfg); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Warn("runtime failed to load", "config", cfg.Name, "error", err)
			attempts = append(attempts, Attempt{Config: cfg.Name, Err: err})
			continue
		}
		return s.markLoaded(ctx, eng, cfg)
	}

	if s.fallback == nil {
		attempts = append(attempts, Attempt{Config: "fallback", Err: ffmpeg.ErrUnsupportedPlatform})
		return &EngineLoadError{Attempts: attempts}
	}
	s.logger.Info("trying fallback runtime", "source", s.fallback.Source)
	if err := s.tryLoad(ctx, eng, modules, *s.fallback); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		attempts = append(attempts, Attempt{Config: s.fallback.Name, Err: err})
		return &EngineLoadError{Attempts: attempts}
	}
	return s.markLoaded(ctx, eng, *s.fallback)
}

// tryLoad fetches cfg's executable, materializes it in the registry and loads it.
// The materialized ref is kept until the registry is swept.
func (s *Session) tryLoad(ctx context.Context, eng Engine, m ffmpeg.Modules, cfg RuntimeConfig) error {
	if cfg.Source == SourceModules && m.FFmpeg == "" {
		return errors.New("no resolved toolchain")
	}

	rc, err := s.fetcher.Open(ctx, cfg.asset(m))
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	ref, err := s.registry.Materialize(rc, enginePattern(), enginePerm)
	if err != nil {
		return err
	}
	return eng.Load(ctx, LoadConfig{Binary: ref})
}

// markLoaded flags eng as ready unless Reset replaced it during the load.
func (s *Session) markLoaded(ctx context.Context, eng Engine, cfg RuntimeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != eng {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrReset
	}
	s.loaded = true
	s.logger.Debug("engine loaded", "config", cfg.Name)
	return nil
}

// Loaded reports whether the engine is ready.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Engine returns the engine instance, nil before EnsureCreated.
func (s *Session) Engine() Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Modules returns the resolved toolchain once created.
func (s *Session) Modules() (ffmpeg.Modules, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modules, s.created
}

// Reset closes the engine and forgets it. The next EnsureLoaded starts from scratch.
func (s *Session) Reset() error {
	s.mu.Lock()
	eng := s.engine
	s.engine = nil
	s.created = false
	s.loaded = false
	s.mu.Unlock()

	if eng == nil {
		return nil
	}
	return eng.Close()
}

func enginePattern() string {
	if runtime.GOOS == "windows" {
		return "audiosplit-engine-*.exe"
	}
	return "audiosplit-engine-*"
}
