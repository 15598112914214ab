package cli

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/alnah/go-audiosplit/internal/config"
	"github.com/alnah/go-audiosplit/internal/ffmpeg"
	"github.com/alnah/go-audiosplit/internal/source"
	"github.com/alnah/go-audiosplit/internal/split"
)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func(ctx context.Context) (config.Config, error)

	mu        sync.Mutex
	loadCalls int
}

func (m *mockConfigLoader) Load(ctx context.Context) (config.Config, error) {
	m.mu.Lock()
	m.loadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return config.Default(), nil
}

func (m *mockConfigLoader) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// ---------------------------------------------------------------------------
// Mock SplitterFactory + Splitter
// ---------------------------------------------------------------------------

type mockSplitterFactory struct {
	NewSplitterFunc func(cfg config.Config, opts split.Options) (Splitter, error)
	splitter        *mockSplitter

	mu       sync.Mutex
	calls    int
	lastCfg  config.Config
	lastOpts split.Options
}

func (m *mockSplitterFactory) NewSplitter(cfg config.Config, opts split.Options, _ hclog.Logger) (Splitter, error) {
	m.mu.Lock()
	m.calls++
	m.lastCfg, m.lastOpts = cfg, opts
	m.mu.Unlock()

	if m.NewSplitterFunc != nil {
		return m.NewSplitterFunc(cfg, opts)
	}
	return m.splitter, nil
}

func (m *mockSplitterFactory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockSplitterFactory) LastOptions() split.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

// mockSplitter follows the Controller contract: Select asks confirm only for
// files flagged as large and fails with source.ErrNotConfirmed when declined.
type mockSplitter struct {
	needsConfirm bool
	file         source.File
	info         split.Info
	tasks        []split.Task

	SelectErr  error
	WaitErr    error
	ProcessErr error
	SaveFunc   func(dir string, overwrite bool) ([]string, error)

	mu            sync.Mutex
	selectCalls   int
	confirmCalls  int
	waitCalls     int
	processCalls  int
	saveCalls     int
	resetCalls    int
	lastPath      string
	lastDir       string
	lastOverwrite bool
}

func newMockSplitter() *mockSplitter {
	f := source.File{Path: "/videos/lecture.mp4", Name: "lecture.mp4", Size: 50 << 20, MediaType: "video/mp4"}
	return &mockSplitter{
		file: f,
		info: split.Info{File: f, Duration: 3661 * time.Second, Known: true, ExpectedParts: 3},
		tasks: []split.Task{
			{Index: 1, Name: "lecture_part1.mp3", Start: 0, Length: 1800 * time.Second},
			{Index: 2, Name: "lecture_part2.mp3", Start: 1800 * time.Second, Length: 1800 * time.Second},
			{Index: 3, Name: "lecture_part3.mp3", Start: 3600 * time.Second, Length: 61 * time.Second},
		},
	}
}

func (m *mockSplitter) Select(_ context.Context, path string, confirm func(source.File) bool) (source.File, error) {
	m.mu.Lock()
	m.selectCalls++
	m.lastPath = path
	needsConfirm := m.needsConfirm
	m.mu.Unlock()

	if m.SelectErr != nil {
		return source.File{}, m.SelectErr
	}
	if needsConfirm {
		m.mu.Lock()
		m.confirmCalls++
		m.mu.Unlock()
		if confirm == nil || !confirm(m.file) {
			return source.File{}, source.ErrNotConfirmed
		}
	}
	return m.file, nil
}

func (m *mockSplitter) Wait(context.Context) (split.Info, error) {
	m.mu.Lock()
	m.waitCalls++
	m.mu.Unlock()

	if m.WaitErr != nil {
		return split.Info{}, m.WaitErr
	}
	return m.info, nil
}

func (m *mockSplitter) Process(_ context.Context, onProgress split.ProgressFunc) ([]split.Task, error) {
	m.mu.Lock()
	m.processCalls++
	m.mu.Unlock()

	if onProgress != nil {
		onProgress(split.Progress{Percent: 0, Status: split.StatusConverting})
		onProgress(split.Progress{Percent: 40, Status: split.StatusConverted})
	}
	if m.ProcessErr != nil {
		if onProgress != nil {
			onProgress(split.Progress{Percent: 0, Status: split.StatusFailed})
		}
		return nil, m.ProcessErr
	}
	if onProgress != nil {
		onProgress(split.Progress{Percent: 100, Status: split.StatusComplete})
	}
	return m.tasks, nil
}

func (m *mockSplitter) Save(dir string, overwrite bool) ([]string, error) {
	m.mu.Lock()
	m.saveCalls++
	m.lastDir, m.lastOverwrite = dir, overwrite
	m.mu.Unlock()

	if m.SaveFunc != nil {
		return m.SaveFunc(dir, overwrite)
	}
	paths := make([]string, len(m.tasks))
	for i, t := range m.tasks {
		paths[i] = dir + "/" + t.Name
	}
	return paths, nil
}

func (m *mockSplitter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
}

type splitterCalls struct {
	selects, confirms, waits, processes, saves, resets int
}

func (m *mockSplitter) Calls() splitterCalls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return splitterCalls{
		selects:   m.selectCalls,
		confirms:  m.confirmCalls,
		waits:     m.waitCalls,
		processes: m.processCalls,
		saves:     m.saveCalls,
		resets:    m.resetCalls,
	}
}

// ---------------------------------------------------------------------------
// Mock EngineFactory + ModuleResolver + EngineInstaller
// ---------------------------------------------------------------------------

type mockEngineFactory struct {
	resolver  *mockResolver
	installer *mockInstaller

	mu       sync.Mutex
	lastCfg  config.Config
	resolves int
}

func (m *mockEngineFactory) NewResolver(cfg config.Config, _ hclog.Logger) ModuleResolver {
	m.mu.Lock()
	m.lastCfg = cfg
	m.resolves++
	m.mu.Unlock()
	return m.resolver
}

func (m *mockEngineFactory) NewInstaller(io.Writer) EngineInstaller {
	return m.installer
}

type mockResolver struct {
	ResolveFunc func(ctx context.Context) (ffmpeg.Modules, error)

	mu    sync.Mutex
	calls int
}

func (m *mockResolver) Resolve(ctx context.Context) (ffmpeg.Modules, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx)
	}
	return ffmpeg.Modules{FFmpeg: "/usr/bin/ffmpeg", Version: "6.1.1", MP3: true, FFprobe: "/usr/bin/ffprobe"}, nil
}

type mockInstaller struct {
	installedPath string
	installed     bool
	InstallFunc   func(ctx context.Context) (string, error)

	mu           sync.Mutex
	installCalls int
}

func (m *mockInstaller) Installed() (string, bool) {
	return m.installedPath, m.installed
}

func (m *mockInstaller) Install(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.installCalls++
	m.mu.Unlock()

	if m.InstallFunc != nil {
		return m.InstallFunc(ctx)
	}
	return "/home/user/.audiosplit/bin/ffmpeg", nil
}

func (m *mockInstaller) InstallCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installCalls
}

// ---------------------------------------------------------------------------
// Mock Locker + Lock
// ---------------------------------------------------------------------------

type mockLocker struct {
	busy    bool
	lockErr error

	mu    sync.Mutex
	paths []string
	locks []*mockLock
}

func (m *mockLocker) NewLock(path string) Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := &mockLock{busy: m.busy, err: m.lockErr}
	m.paths = append(m.paths, path)
	m.locks = append(m.locks, l)
	return l
}

func (m *mockLocker) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

func (m *mockLocker) Lock(i int) *mockLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[i]
}

type mockLock struct {
	busy bool
	err  error

	mu       sync.Mutex
	held     bool
	unlocked int
}

func (l *mockLock) TryLock() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.busy {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *mockLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.unlocked++
	return nil
}

func (l *mockLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func (l *mockLock) Unlocked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unlocked
}
