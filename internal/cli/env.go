package cli

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"

	"github.com/alnah/go-audiosplit/internal/artifact"
	"github.com/alnah/go-audiosplit/internal/config"
	"github.com/alnah/go-audiosplit/internal/engine"
	"github.com/alnah/go-audiosplit/internal/ffmpeg"
	"github.com/alnah/go-audiosplit/internal/probe"
	"github.com/alnah/go-audiosplit/internal/source"
	"github.com/alnah/go-audiosplit/internal/split"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O and environment
	Stdout      io.Writer
	Stderr      io.Writer
	Stdin       io.Reader
	Interactive func() bool // stdin can answer a prompt
	Getenv      func(string) string
	GOOS        string

	// Teardown registration; main wires it to the interrupt handler.
	OnInterrupt func(fn func())

	// Factories for domain objects
	ConfigLoader    ConfigLoader
	ConfigStore     ConfigStore
	SplitterFactory SplitterFactory
	EngineFactory   EngineFactory
	Locker          Locker
}

// ConfigLoader loads the effective configuration.
type ConfigLoader interface {
	Load(ctx context.Context) (config.Config, error)
}

// ConfigStore edits the config file.
type ConfigStore interface {
	Set(key, value string) error
	Get(key string) (string, error)
	List() (map[string]string, error)
	Path() string
}

// Splitter drives one selected video from acceptance to saved parts.
type Splitter interface {
	Select(ctx context.Context, path string, confirm func(source.File) bool) (source.File, error)
	Wait(ctx context.Context) (split.Info, error)
	Process(ctx context.Context, onProgress split.ProgressFunc) ([]split.Task, error)
	Save(dir string, overwrite bool) ([]string, error)
	Reset()
}

// SplitterFactory builds a Splitter wired to the FFmpeg engine.
type SplitterFactory interface {
	NewSplitter(cfg config.Config, opts split.Options, logger hclog.Logger) (Splitter, error)
}

// ModuleResolver finds the FFmpeg toolchain.
type ModuleResolver interface {
	Resolve(ctx context.Context) (ffmpeg.Modules, error)
}

// EngineInstaller places the pinned static build in the install directory.
type EngineInstaller interface {
	Installed() (string, bool)
	Install(ctx context.Context) (string, error)
}

// EngineFactory creates resolvers and installers for the engine commands.
type EngineFactory interface {
	NewResolver(cfg config.Config, logger hclog.Logger) ModuleResolver
	NewInstaller(stderr io.Writer) EngineInstaller
}

// Lock guards an output directory against a concurrent run.
type Lock interface {
	TryLock() (bool, error)
	Unlock() error
}

// Locker creates a Lock for a lock file path.
type Locker interface {
	NewLock(path string) Lock
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithStdin sets the reader prompts are answered from, and marks it interactive.
func WithStdin(r io.Reader) EnvOption {
	return func(e *Env) {
		e.Stdin = r
		e.Interactive = func() bool { return true }
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithInterrupt sets the teardown registration function.
func WithInterrupt(fn func(func())) EnvOption {
	return func(e *Env) {
		e.OnInterrupt = fn
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithConfigStore sets the config store.
func WithConfigStore(s ConfigStore) EnvOption {
	return func(e *Env) {
		e.ConfigStore = s
	}
}

// WithSplitterFactory sets the splitter factory.
func WithSplitterFactory(f SplitterFactory) EnvOption {
	return func(e *Env) {
		e.SplitterFactory = f
	}
}

// WithEngineFactory sets the engine factory.
func WithEngineFactory(f EngineFactory) EnvOption {
	return func(e *Env) {
		e.EngineFactory = f
	}
}

// WithLocker sets the output-dir locker.
func WithLocker(l Locker) EnvOption {
	return func(e *Env) {
		e.Locker = l
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
		Stdin:           os.Stdin,
		Interactive:     func() bool { return isatty.IsTerminal(os.Stdin.Fd()) },
		Getenv:          os.Getenv,
		GOOS:            runtime.GOOS,
		OnInterrupt:     func(func()) {},
		ConfigLoader:    &defaultConfigLoader{},
		ConfigStore:     &defaultConfigStore{},
		SplitterFactory: &defaultSplitterFactory{},
		EngineFactory:   &defaultEngineFactory{},
		Locker:          &defaultLocker{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load(ctx context.Context) (config.Config, error) {
	return config.Load(ctx)
}

// defaultConfigStore opens the default config file on each call.
type defaultConfigStore struct{}

func (defaultConfigStore) store() (*config.Store, error) {
	return config.NewStore("")
}

func (d defaultConfigStore) Set(key, value string) error {
	s, err := d.store()
	if err != nil {
		return err
	}
	return s.Set(key, value)
}

func (d defaultConfigStore) Get(key string) (string, error) {
	s, err := d.store()
	if err != nil {
		return "", err
	}
	return s.Get(key)
}

func (d defaultConfigStore) List() (map[string]string, error) {
	s, err := d.store()
	if err != nil {
		return nil, err
	}
	return s.List()
}

func (d defaultConfigStore) Path() string {
	s, err := d.store()
	if err != nil {
		return ""
	}
	return s.Path()
}

// defaultSplitterFactory wires the artifact registry, resolver, engine session,
// duration probe and source opener into a split.Controller.
type defaultSplitterFactory struct{}

func (defaultSplitterFactory) NewSplitter(cfg config.Config, opts split.Options, logger hclog.Logger) (Splitter, error) {
	registry := artifact.NewRegistry(artifact.WithLogger(logger.Named("artifact")))
	exec := ffmpeg.NewExecutor()
	resolver := newResolver(cfg, exec, logger)

	session := engine.NewSession(resolver, registry,
		engine.WithFetcher(ffmpeg.NewDownloader()),
		engine.WithRuntimeConfigs(engine.DefaultRuntimeConfigs(cfg.RuntimeMirrors)...),
		engine.WithLogger(logger.Named("session")),
	)

	prober := probe.Deferred(func(ctx context.Context) (probe.Prober, error) {
		m, err := resolver.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		return probe.ForModules(m, exec), nil
	})
	durations := probe.New(prober, registry, probe.WithLogger(logger.Named("probe")))

	ctrl, err := split.NewController(source.NewOpener(), session, durations, registry, opts,
		split.WithControllerLogger(logger.Named("split")))
	if err != nil {
		return nil, err
	}
	return ctrl, nil
}

// defaultEngineFactory implements EngineFactory using the ffmpeg package.
type defaultEngineFactory struct{}

func (defaultEngineFactory) NewResolver(cfg config.Config, logger hclog.Logger) ModuleResolver {
	return newResolver(cfg, ffmpeg.NewExecutor(), logger)
}

func (defaultEngineFactory) NewInstaller(stderr io.Writer) EngineInstaller {
	return ffmpeg.NewInstaller(ffmpeg.WithInstallStderr(stderr))
}

func newResolver(cfg config.Config, exec *ffmpeg.Executor, logger hclog.Logger) *ffmpeg.Resolver {
	return ffmpeg.NewResolver(
		ffmpeg.WithEngineDir(cfg.EngineDir),
		ffmpeg.WithExecutor(exec),
		ffmpeg.WithLogger(logger.Named("resolver")),
	)
}

// defaultLocker implements Locker with advisory file locks.
type defaultLocker struct{}

func (defaultLocker) NewLock(path string) Lock {
	return flock.New(path)
}

// Compile-time interface checks.
var (
	_ ConfigLoader    = (*defaultConfigLoader)(nil)
	_ ConfigStore     = (*defaultConfigStore)(nil)
	_ SplitterFactory = (*defaultSplitterFactory)(nil)
	_ EngineFactory   = (*defaultEngineFactory)(nil)
	_ Locker          = (*defaultLocker)(nil)
	_ Splitter        = (*split.Controller)(nil)
	_ ModuleResolver  = (*ffmpeg.Resolver)(nil)
	_ EngineInstaller = (*ffmpeg.Installer)(nil)
	_ Lock            = (*flock.Flock)(nil)
)
