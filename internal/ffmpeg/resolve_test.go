package ffmpeg

// Notes:
// - Resolver tests inject sources, a stat-only filesystem and a scripted executor
// - No real ffmpeg is needed; the executor answers "-version" and "-encoders"

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Shapes - directory layouts
// ---------------------------------------------------------------------------

func TestShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		goos   string
		goarch string
		want   []string
	}{
		{
			name: "linux amd64",
			goos: "linux", goarch: "amd64",
			want: []string{
				filepath.Join("/opt/ff", "ffmpeg"),
				filepath.Join("/opt/ff", "bin", "ffmpeg"),
				filepath.Join("/opt/ff", "ffmpeg-linux-x64"),
			},
		},
		{
			name: "windows adds exe",
			goos: "windows", goarch: "amd64",
			want: []string{
				filepath.Join("/opt/ff", "ffmpeg.exe"),
				filepath.Join("/opt/ff", "bin", "ffmpeg.exe"),
				filepath.Join("/opt/ff", "ffmpeg-win32-x64.exe"),
			},
		},
		{
			name: "darwin arm64",
			goos: "darwin", goarch: "arm64",
			want: []string{
				filepath.Join("/opt/ff", "ffmpeg"),
				filepath.Join("/opt/ff", "bin", "ffmpeg"),
				filepath.Join("/opt/ff", "ffmpeg-darwin-arm64"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Shapes("/opt/ff", "ffmpeg", tt.goos, tt.goarch)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Shapes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetect_FirstShapeWins(t *testing.T) {
	t.Parallel()

	dir := "/tools"
	existing := map[string]bool{
		filepath.Join(dir, "bin", "ffmpeg"):    true,
		filepath.Join(dir, "ffmpeg-linux-x64"): true,
	}
	got, ok := detect(func(n string) bool { return existing[n] }, dir, "ffmpeg", "linux", "amd64")
	if !ok {
		t.Fatal("detect() found nothing")
	}
	if want := filepath.Join(dir, "bin", "ffmpeg"); got != want {
		t.Errorf("detect() = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// Resolver - source ordering and acceptance
// ---------------------------------------------------------------------------

func TestResolverResolve_FirstCompleteSourceWins(t *testing.T) {
	t.Parallel()

	src1 := &fakeSource{name: "one", err: errors.New("missing")}
	src2 := &fakeSource{name: "two", loc: Location{FFmpeg: "/two/ffmpeg"}} // no libmp3lame
	src3 := &fakeSource{name: "three", loc: Location{FFmpeg: "/three/ffmpeg", FFprobe: "/three/ffprobe"}}
	src4 := &fakeSource{name: "four", loc: Location{FFmpeg: "/four/ffmpeg"}}

	exec := scriptedExecutor(map[string]fakeBinary{
		"/two/ffmpeg":   {version: "6.0"},
		"/three/ffmpeg": {version: "6.1.1", encoders: []string{"libmp3lame"}},
		"/four/ffmpeg":  {version: "7.0", encoders: []string{"libmp3lame"}},
	})

	r := NewResolver(WithSources(src1, src2, src3, src4), WithExecutor(exec))

	got, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	want := Modules{FFmpeg: "/three/ffmpeg", Version: "6.1.1", MP3: true, FFprobe: "/three/ffprobe"}
	if got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
	if src4.calls != 0 {
		t.Errorf("source after the winner was consulted %d time(s)", src4.calls)
	}
}

func TestResolverResolve_PartialSourcesAreNotMerged(t *testing.T) {
	t.Parallel()

	// First source has a probe but an engine without MP3; second has MP3 but no probe.
	src1 := &fakeSource{name: "a", loc: Location{FFmpeg: "/a/ffmpeg", FFprobe: "/a/ffprobe"}}
	src2 := &fakeSource{name: "b", loc: Location{FFmpeg: "/b/ffmpeg"}}

	exec := scriptedExecutor(map[string]fakeBinary{
		"/a/ffmpeg": {version: "6.1"},
		"/b/ffmpeg": {version: "6.1", encoders: []string{"libmp3lame"}},
	})

	got, err := NewResolver(WithSources(src1, src2), WithExecutor(exec)).Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if got.FFprobe != "" {
		t.Errorf("Resolve().FFprobe = %q, want empty (not borrowed from another source)", got.FFprobe)
	}
	if got.FFmpeg != "/b/ffmpeg" {
		t.Errorf("Resolve().FFmpeg = %q, want %q", got.FFmpeg, "/b/ffmpeg")
	}
}

func TestResolverResolve_AllSourcesFail(t *testing.T) {
	t.Parallel()

	src1 := &fakeSource{name: "env", err: errors.New("FFMPEG_PATH not set")}
	src2 := &fakeSource{name: "path", loc: Location{FFmpeg: "/usr/bin/ffmpeg"}}

	exec := scriptedExecutor(map[string]fakeBinary{
		"/usr/bin/ffmpeg": {version: "5.1", encoders: []string{"aac"}},
	})

	_, err := NewResolver(WithSources(src1, src2), WithExecutor(exec)).Resolve(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}

	var loadErr *ModuleLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Resolve() error type = %T, want *ModuleLoadError", err)
	}
	if len(loadErr.Attempts) != 2 {
		t.Fatalf("len(Attempts) = %d, want 2", len(loadErr.Attempts))
	}
	if loadErr.Attempts[0].Source != "env" || loadErr.Attempts[1].Source != "path" {
		t.Errorf("Attempts sources = %q, %q; want env, path", loadErr.Attempts[0].Source, loadErr.Attempts[1].Source)
	}
	if !errors.Is(loadErr.Attempts[1].Err, ErrNoMP3Encoder) {
		t.Errorf("Attempts[1].Err = %v, want ErrNoMP3Encoder", loadErr.Attempts[1].Err)
	}
	if !strings.Contains(err.Error(), "FFMPEG_PATH not set") {
		t.Errorf("Error() = %q, want it to list attempt reasons", err.Error())
	}
}

func TestResolverResolve_Cached(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "one", loc: Location{FFmpeg: "/x/ffmpeg"}}
	exec := scriptedExecutor(map[string]fakeBinary{
		"/x/ffmpeg": {version: "6.1", encoders: []string{"libmp3lame"}},
	})
	r := NewResolver(WithSources(src), WithExecutor(exec))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background()); err != nil {
				t.Errorf("Resolve() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := src.callCount(); got != 1 {
		t.Errorf("source consulted %d times, want 1", got)
	}
	if _, ok := r.Resolved(); !ok {
		t.Error("Resolved() = false after successful Resolve")
	}
}

func TestResolverResolve_FailureNotCached(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "one", err: errors.New("nope")}
	r := NewResolver(WithSources(src), WithExecutor(scriptedExecutor(nil)))

	_, _ = r.Resolve(context.Background())
	_, _ = r.Resolve(context.Background())

	if got := src.callCount(); got != 2 {
		t.Errorf("source consulted %d times, want 2", got)
	}
}

func TestResolverResolve_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{name: "one", loc: Location{FFmpeg: "/x/ffmpeg"}}
	_, err := NewResolver(WithSources(src), WithExecutor(scriptedExecutor(nil))).Resolve(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// Resolver - default sources
// ---------------------------------------------------------------------------

func TestResolverResolve_EnvSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		env       map[string]string
		files     []string
		wantPath  string
		wantProbe string
		wantErr   bool
	}{
		{
			name:      "FFMPEG_PATH with sibling ffprobe",
			env:       map[string]string{"FFMPEG_PATH": "/opt/ff/ffmpeg"},
			files:     []string{"/opt/ff/ffmpeg", "/opt/ff/ffprobe"},
			wantPath:  "/opt/ff/ffmpeg",
			wantProbe: "/opt/ff/ffprobe",
		},
		{
			name:      "FFPROBE_PATH overrides sibling",
			env:       map[string]string{"FFMPEG_PATH": "/opt/ff/ffmpeg", "FFPROBE_PATH": "/elsewhere/ffprobe"},
			files:     []string{"/opt/ff/ffmpeg", "/opt/ff/ffprobe", "/elsewhere/ffprobe"},
			wantPath:  "/opt/ff/ffmpeg",
			wantProbe: "/elsewhere/ffprobe",
		},
		{
			name:    "FFMPEG_PATH set but missing falls through to failure",
			env:     map[string]string{"FFMPEG_PATH": "/nonexistent/ffmpeg"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := &mockEnvProvider{
				getenv:      func(key string) string { return tt.env[key] },
				userHomeDir: func() (string, error) { return "/mock/home", nil },
				lookPath:    func(string) (string, error) { return "", errors.New("not in PATH") },
			}
			exec := scriptedExecutor(map[string]fakeBinary{
				tt.wantPath: {version: "6.1.1", encoders: []string{"libmp3lame"}},
			})

			r := NewResolver(
				WithEnvProvider(env),
				WithFileSystem(statOnlyFS(tt.files...)),
				WithExecutor(exec),
				WithPlatform("linux", "amd64"),
			)
			got, err := r.Resolve(context.Background())

			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Resolve() error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if got.FFmpeg != tt.wantPath || got.FFprobe != tt.wantProbe {
				t.Errorf("Resolve() = %+v, want ffmpeg %q ffprobe %q", got, tt.wantPath, tt.wantProbe)
			}
		})
	}
}

func TestResolverResolve_ConfigThenInstallThenPath(t *testing.T) {
	t.Parallel()

	installBin := filepath.Join("/mock/home", ".audiosplit", "bin")

	tests := []struct {
		name      string
		engineDir string
		files     []string
		want      string
	}{
		{
			name:      "configured dir with bin layout",
			engineDir: "/cfg",
			files:     []string{"/cfg/bin/ffmpeg", filepath.Join(installBin, "ffmpeg")},
			want:      "/cfg/bin/ffmpeg",
		},
		{
			name:  "install dir when config empty",
			files: []string{filepath.Join(installBin, "ffmpeg")},
			want:  filepath.Join(installBin, "ffmpeg"),
		},
		{
			name:  "system PATH last",
			files: nil,
			want:  "/usr/bin/ffmpeg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := &mockEnvProvider{
				getenv:      func(string) string { return "" },
				userHomeDir: func() (string, error) { return "/mock/home", nil },
				lookPath: func(file string) (string, error) {
					if file == "ffmpeg" {
						return "/usr/bin/ffmpeg", nil
					}
					return "", errors.New("not in PATH")
				},
			}
			exec := scriptedExecutor(map[string]fakeBinary{
				tt.want: {version: "6.1.1", encoders: []string{"libmp3lame"}},
			})

			r := NewResolver(
				WithEnvProvider(env),
				WithFileSystem(statOnlyFS(tt.files...)),
				WithExecutor(exec),
				WithEngineDir(tt.engineDir),
				WithPlatform("linux", "amd64"),
			)
			got, err := r.Resolve(context.Background())
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if got.FFmpeg != tt.want {
				t.Errorf("Resolve().FFmpeg = %q, want %q", got.FFmpeg, tt.want)
			}
		})
	}
}

func TestResolverSources_Order(t *testing.T) {
	t.Parallel()

	var names []string
	for _, s := range NewResolver().Sources() {
		names = append(names, s.Name())
	}
	want := []string{"env", "config", "install", "path"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Sources() = %v, want %v", names, want)
	}
}

func TestManualInstallInstructions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "brew install ffmpeg"},
		{"linux", "apt install ffmpeg"},
		{"windows", "winget install ffmpeg"},
		{"plan9", "ffmpeg.org"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			t.Parallel()
			if got := ManualInstallInstructions(tt.goos); !strings.Contains(got, tt.want) {
				t.Errorf("ManualInstallInstructions(%q) = %q, want containing %q", tt.goos, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type fakeSource struct {
	name string
	loc  Location
	err  error

	mu    sync.Mutex
	calls int
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Locate() (Location, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.loc, s.err
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeBinary struct {
	version  string
	encoders []string
}

// scriptedExecutor answers "-version" and "-encoders" for known paths;
// unknown paths behave like a missing executable.
func scriptedExecutor(bins map[string]fakeBinary) *Executor {
	return NewExecutor(WithRunOutput(func(_ context.Context, path string, args []string) (string, error) {
		bin, ok := bins[path]
		if !ok {
			return "", os.ErrNotExist
		}
		switch args[len(args)-1] {
		case "-version":
			return "ffmpeg version " + bin.version + " Copyright (c) 2000-2023 the FFmpeg developers\n", nil
		case "-encoders":
			var b strings.Builder
			b.WriteString("Encoders:\n ------\n")
			for _, e := range bin.encoders {
				b.WriteString(" A....D " + e + "    " + e + " encoder\n")
			}
			return b.String(), nil
		}
		return "", errors.New("unexpected args")
	}))
}

// mockFS delegates to the os package except for Stat.
type mockFS struct {
	osFileSystem
	stat func(name string) (os.FileInfo, error)
}

func (m *mockFS) Stat(name string) (os.FileInfo, error) {
	if m.stat != nil {
		return m.stat(name)
	}
	return nil, os.ErrNotExist
}

func statOnlyFS(files ...string) *mockFS {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	return &mockFS{stat: func(name string) (os.FileInfo, error) {
		if set[name] {
			return mockFileInfo{name: filepath.Base(name)}, nil
		}
		return nil, os.ErrNotExist
	}}
}

type mockEnvProvider struct {
	getenv      func(key string) string
	userHomeDir func() (string, error)
	lookPath    func(file string) (string, error)
}

func (m *mockEnvProvider) Getenv(key string) string {
	if m.getenv != nil {
		return m.getenv(key)
	}
	return ""
}

func (m *mockEnvProvider) UserHomeDir() (string, error) {
	if m.userHomeDir != nil {
		return m.userHomeDir()
	}
	return "", errors.New("no home")
}

func (m *mockEnvProvider) LookPath(file string) (string, error) {
	if m.lookPath != nil {
		return m.lookPath(file)
	}
	return "", errors.New("not found")
}

type mockFileInfo struct {
	name  string
	size  int64
	isDir bool
}

func (m mockFileInfo) Name() string       { return m.name }
func (m mockFileInfo) Size() int64        { return m.size }
func (m mockFileInfo) Mode() os.FileMode  { return 0o755 }
func (m mockFileInfo) ModTime() time.Time { return time.Time{} }
func (m mockFileInfo) IsDir() bool        { return m.isDir }
func (m mockFileInfo) Sys() any           { return nil }
