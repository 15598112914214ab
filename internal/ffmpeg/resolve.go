package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Environment variables pointing at a specific toolchain.
const (
	EnvFFmpegPath  = "FFMPEG_PATH"
	EnvFFprobePath = "FFPROBE_PATH"
)

const (
	binaryName       = "ffmpeg"
	probeBinaryName  = "ffprobe"
	binaryExtWindows = ".exe"

	// mp3Encoder must be listed by the engine for a source to be accepted.
	mp3Encoder = "libmp3lame"
)

// Modules is a resolved FFmpeg toolchain.
type Modules struct {
	FFmpeg  string // engine executable
	Version string
	MP3     bool   // libmp3lame available
	FFprobe string // companion probe, empty when absent
}

// Location is where a source claims the toolchain lives.
type Location struct {
	FFmpeg  string
	FFprobe string
}

// Source is one place the toolchain may be found.
type Source interface {
	Name() string
	Locate() (Location, error)
}

// ---------------------------------------------------------------------------
// Shape probing
// ---------------------------------------------------------------------------

// statFunc reports whether name is an existing regular file.
type statFunc func(name string) bool

// Shapes returns, in probing order, the file layouts a toolchain directory may have
// for the named binary.
func Shapes(dir, name, goos, goarch string) []string {
	ext := ""
	if goos == "windows" {
		ext = binaryExtWindows
	}
	return []string{
		filepath.Join(dir, name+ext),
		filepath.Join(dir, "bin", name+ext),
		filepath.Join(dir, name+"-"+Platform(goos, goarch)+ext),
	}
}

// detect returns the first shape that exists.
func detect(exists statFunc, dir, name, goos, goarch string) (string, bool) {
	for _, p := range Shapes(dir, name, goos, goarch) {
		if exists(p) {
			return p, true
		}
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Sources
// ---------------------------------------------------------------------------

type envSource struct {
	env    envProvider
	exists statFunc
	goos   string
	goarch string
}

func (envSource) Name() string { return "env" }

func (s envSource) Locate() (Location, error) {
	path := s.env.Getenv(EnvFFmpegPath)
	if path == "" {
		return Location{}, fmt.Errorf("%s not set", EnvFFmpegPath)
	}
	if !s.exists(path) {
		return Location{}, fmt.Errorf("%s is set to %q but binary not found", EnvFFmpegPath, path)
	}
	loc := Location{FFmpeg: path}
	if probe := s.env.Getenv(EnvFFprobePath); probe != "" && s.exists(probe) {
		loc.FFprobe = probe
	} else if probe, ok := detect(s.exists, filepath.Dir(path), probeBinaryName, s.goos, s.goarch); ok {
		loc.FFprobe = probe
	}
	return loc, nil
}

type dirSource struct {
	name   string
	dir    func() (string, error)
	exists statFunc
	goos   string
	goarch string
}

func (s dirSource) Name() string { return s.name }

func (s dirSource) Locate() (Location, error) {
	dir, err := s.dir()
	if err != nil {
		return Location{}, err
	}
	if dir == "" {
		return Location{}, errors.New("not configured")
	}
	path, ok := detect(s.exists, dir, binaryName, s.goos, s.goarch)
	if !ok {
		return Location{}, fmt.Errorf("no ffmpeg in %s", dir)
	}
	probe, _ := detect(s.exists, dir, probeBinaryName, s.goos, s.goarch)
	return Location{FFmpeg: path, FFprobe: probe}, nil
}

type pathSource struct {
	env envProvider
}

func (pathSource) Name() string { return "path" }

func (s pathSource) Locate() (Location, error) {
	path, err := s.env.LookPath(binaryName)
	if err != nil {
		return Location{}, err
	}
	probe, _ := s.env.LookPath(probeBinaryName)
	return Location{FFmpeg: path, FFprobe: probe}, nil
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

// Resolver finds a complete FFmpeg toolchain across an ordered list of sources.
// Resolution happens once; later calls return the cached Modules.
type Resolver struct {
	fs        fileSystem
	env       envProvider
	executor  *Executor
	logger    hclog.Logger
	engineDir string
	goos      string
	goarch    string
	sources   []Source // nil uses the default list

	mu       sync.Mutex
	resolved *Modules
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFileSystem sets the filesystem used for shape probing.
func WithFileSystem(fs fileSystem) ResolverOption {
	return func(r *Resolver) { r.fs = fs }
}

// WithEnvProvider sets the environment provider implementation.
func WithEnvProvider(e envProvider) ResolverOption {
	return func(r *Resolver) { r.env = e }
}

// WithExecutor sets the executor used to query candidate binaries.
func WithExecutor(e *Executor) ResolverOption {
	return func(r *Resolver) { r.executor = e }
}

// WithLogger sets the logger for per-source diagnostics.
func WithLogger(l hclog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// WithEngineDir sets the configured toolchain directory (the "config" source).
func WithEngineDir(dir string) ResolverOption {
	return func(r *Resolver) { r.engineDir = dir }
}

// WithPlatform sets the target platform (for testing cross-platform behavior).
func WithPlatform(goos, goarch string) ResolverOption {
	return func(r *Resolver) {
		r.goos = goos
		r.goarch = goarch
	}
}

// WithSources replaces the default source list.
func WithSources(sources ...Source) ResolverOption {
	return func(r *Resolver) { r.sources = sources }
}

// NewResolver creates a Resolver with production defaults.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fs:       osFileSystem{},
		env:      osEnvProvider{},
		executor: NewExecutor(),
		logger:   hclog.NewNullLogger(),
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sources returns the sources in the order they are tried:
//  1. env: FFMPEG_PATH (and FFPROBE_PATH)
//  2. config: the configured engine directory
//  3. install: ~/.audiosplit/bin
//  4. path: system PATH
func (r *Resolver) Sources() []Source {
	if r.sources != nil {
		return r.sources
	}
	return []Source{
		envSource{env: r.env, exists: r.isFile, goos: r.goos, goarch: r.goarch},
		dirSource{name: "config", dir: func() (string, error) { return r.engineDir, nil },
			exists: r.isFile, goos: r.goos, goarch: r.goarch},
		dirSource{name: "install", dir: func() (string, error) { return installDir(r.env) },
			exists: r.isFile, goos: r.goos, goarch: r.goarch},
		pathSource{env: r.env},
	}
}

// Resolve returns the first source's toolchain that has the engine, a readable version
// and the MP3 encoder. Sources are never combined. Failures are not cached, so a
// later call tries every source again.
func (r *Resolver) Resolve(ctx context.Context) (Modules, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != nil {
		return *r.resolved, nil
	}

	var attempts []Attempt
	for _, src := range r.Sources() {
		if err := ctx.Err(); err != nil {
			return Modules{}, err
		}
		m, err := r.try(ctx, src)
		if err != nil {
			r.logger.Debug("ffmpeg source rejected", "source", src.Name(), "error", err)
			attempts = append(attempts, Attempt{Source: src.Name(), Err: err})
			continue
		}
		r.logger.Debug("ffmpeg resolved", "source", src.Name(), "path", m.FFmpeg, "version", m.Version)
		r.resolved = &m
		return m, nil
	}
	return Modules{}, &ModuleLoadError{Attempts: attempts}
}

// Resolved returns the cached Modules, if any.
func (r *Resolver) Resolved() (Modules, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved == nil {
		return Modules{}, false
	}
	return *r.resolved, true
}

func (r *Resolver) try(ctx context.Context, src Source) (Modules, error) {
	loc, err := src.Locate()
	if err != nil {
		return Modules{}, err
	}

	vc := NewVersionChecker(WithVersionExecutor(r.executor), WithVersionLogger(r.logger))
	version, err := vc.Version(ctx, loc.FFmpeg)
	if err != nil {
		return Modules{}, err
	}

	mp3, err := r.executor.HasEncoder(ctx, loc.FFmpeg, mp3Encoder)
	if err != nil {
		return Modules{}, fmt.Errorf("list encoders: %w", err)
	}
	if !mp3 {
		return Modules{}, ErrNoMP3Encoder
	}

	return Modules{FFmpeg: loc.FFmpeg, Version: version, MP3: true, FFprobe: loc.FFprobe}, nil
}

func (r *Resolver) isFile(name string) bool {
	info, err := r.fs.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

// InstallDir returns the directory "engine install" writes to.
func InstallDir(home string) string {
	return filepath.Join(home, ".audiosplit", "bin")
}

func installDir(env envProvider) (string, error) {
	home, err := env.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return InstallDir(home), nil
}

// ManualInstallInstructions returns platform-specific instructions.
func ManualInstallInstructions(goos string) string {
	switch goos {
	case "darwin":
		return `To install FFmpeg manually:
  brew install ffmpeg

Or run "audiosplit engine install", or set FFMPEG_PATH to your ffmpeg binary.`
	case "linux":
		return `To install FFmpeg manually:
  Ubuntu/Debian: sudo apt install ffmpeg
  Fedora:        sudo dnf install ffmpeg
  Arch:          sudo pacman -S ffmpeg

Or run "audiosplit engine install", or set FFMPEG_PATH to your ffmpeg binary.`
	case "windows":
		return `To install FFmpeg manually:
  winget install ffmpeg

Or run "audiosplit engine install", or set FFMPEG_PATH to your ffmpeg.exe.`
	default:
		return `To install FFmpeg manually, download from https://ffmpeg.org/download.html
Or set FFMPEG_PATH to your ffmpeg binary.`
	}
}
