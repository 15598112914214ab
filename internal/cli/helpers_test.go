package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/alnah/go-audiosplit/internal/config"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	configLoader *mockConfigLoader
	splitter     *mockSplitter
	splitters    *mockSplitterFactory
	engine       *mockEngineFactory
	locker       *mockLocker

	mu    sync.Mutex
	hooks int
}

func newTestMocks() *testMocks {
	s := newMockSplitter()
	return &testMocks{
		configLoader: &mockConfigLoader{},
		splitter:     s,
		splitters:    &mockSplitterFactory{splitter: s},
		engine:       &mockEngineFactory{resolver: &mockResolver{}, installer: &mockInstaller{}},
		locker:       &mockLocker{},
	}
}

func (m *testMocks) Hooks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hooks
}

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

// testEnvOptions configures a test environment.
type testEnvOptions struct {
	stdin       string
	interactive bool
	getenv      func(string) string
	store       ConfigStore
	mocks       *testMocks
}

// testEnvOption configures testEnv.
type testEnvOption func(*testEnvOptions)

func withAnswer(s string) testEnvOption {
	return func(o *testEnvOptions) {
		o.stdin = s
		o.interactive = true
	}
}

func withEnvVars(vars map[string]string) testEnvOption {
	return func(o *testEnvOptions) { o.getenv = staticEnv(vars) }
}

func withStore(s ConfigStore) testEnvOption {
	return func(o *testEnvOptions) { o.store = s }
}

// testEnv creates a test Env with all dependencies mocked.
// Returns the Env, its stdout and stderr buffers, and the mocks for assertions.
func testEnv(opts ...testEnvOption) (*Env, *syncBuffer, *syncBuffer, *testMocks) {
	options := &testEnvOptions{
		getenv: staticEnv(nil),
		mocks:  newTestMocks(),
	}
	for _, opt := range opts {
		opt(options)
	}

	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	mocks := options.mocks
	env := &Env{
		Stdout:      stdout,
		Stderr:      stderr,
		Stdin:       strings.NewReader(options.stdin),
		Interactive: func() bool { return options.interactive },
		Getenv:      options.getenv,
		GOOS:        "linux",
		OnInterrupt: func(func()) {
			mocks.mu.Lock()
			mocks.hooks++
			mocks.mu.Unlock()
		},
		ConfigLoader:    mocks.configLoader,
		ConfigStore:     options.store,
		SplitterFactory: mocks.splitters,
		EngineFactory:   mocks.engine,
		Locker:          mocks.locker,
	}
	return env, stdout, stderr, mocks
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// staticEnv returns a getenv function that returns values from the given map.
func staticEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

// configWithOutputDir returns a ConfigLoader with defaults and the given output directory.
func configWithOutputDir(outputDir string) *mockConfigLoader {
	return &mockConfigLoader{
		LoadFunc: func(context.Context) (config.Config, error) {
			cfg := config.Default()
			cfg.OutputDir = outputDir
			return cfg, nil
		},
	}
}

// execute runs cmd with args the way the root command would.
func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(context.Background())
}
