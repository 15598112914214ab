package render_test

// Notes:
// - Output goes to bytes.Buffer, which is never a terminal, so plain mode is the default
// - The bar is forced with WithBar(true) to check it renders into any writer

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-audiosplit/internal/artifact"
	"github.com/alnah/go-audiosplit/internal/render"
	"github.com/alnah/go-audiosplit/internal/source"
	"github.com/alnah/go-audiosplit/internal/split"
)

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

func TestProgress_Plain(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := render.NewProgress(&buf)

	p.Update(split.Progress{Percent: 0, Status: split.StatusConverting})
	p.Update(split.Progress{Percent: 0.2, Status: split.StatusConverting})
	p.Update(split.Progress{Percent: 40, Status: split.StatusConverted})
	p.Update(split.Progress{Percent: 100, Status: split.StatusComplete})

	want := "  0% Converting video to MP3...\n" +
		" 40% Conversion complete, splitting...\n" +
		"100% Split complete!\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestProgress_Bar(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := render.NewProgress(&buf, render.WithBar(true))

	p.Update(split.Progress{Percent: 40, Status: split.StatusConverted})
	p.Update(split.Progress{Percent: 100, Status: split.StatusComplete})

	if !strings.Contains(buf.String(), "complete") {
		t.Errorf("bar output = %q, want the status as description", buf.String())
	}
}

func TestProgress_ConcurrentUpdates(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := render.NewProgress(&buf)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Update(split.Progress{Percent: float64(i * 10), Status: "Created part"})
		}()
	}
	wg.Wait()
	p.Abort()

	if buf.Len() == 0 {
		t.Error("no output")
	}
}

func TestIsTerminal_NonFile(t *testing.T) {
	t.Parallel()

	if render.IsTerminal(&bytes.Buffer{}) {
		t.Error("IsTerminal(buffer) = true")
	}
}

// ---------------------------------------------------------------------------
// FileInfo
// ---------------------------------------------------------------------------

func TestFileInfo(t *testing.T) {
	t.Parallel()

	file := source.File{Name: "lecture.mp4", Size: 300 << 20, Title: "Week 1"}

	t.Run("known duration", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		render.FileInfo(&buf, split.Info{File: file, Duration: 3661 * time.Second, Known: true, ExpectedParts: 3}, 30*time.Minute)
		out := buf.String()
		for _, want := range []string{"lecture.mp4", "Week 1", "300 MiB", "1:01:01", "3 parts of 30m"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("unknown duration", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		render.FileInfo(&buf, split.Info{File: file}, 30*time.Minute)
		if !strings.Contains(buf.String(), "unknown") {
			t.Errorf("output = %q, want unknown duration", buf.String())
		}
	})
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

func TestResults(t *testing.T) {
	t.Parallel()

	reg := artifact.NewRegistry(artifact.WithDir(t.TempDir()))
	ref1, err := reg.Materialize(strings.NewReader(strings.Repeat("a", 2048)), "p-*", 0o600)
	if err != nil {
		t.Fatal(err)
	}
	ref2, err := reg.Materialize(strings.NewReader("b"), "p-*", 0o600)
	if err != nil {
		t.Fatal(err)
	}

	ref3, err := reg.Materialize(strings.NewReader("c"), "p-*", 0o600)
	if err != nil {
		t.Fatal(err)
	}

	out := render.Results([]split.Task{
		{Index: 1, Name: "lecture_part1.mp3", Start: 0, Length: 30 * time.Minute, Ref: ref1},
		{Index: 2, Name: "lecture_part2.mp3", Start: 30 * time.Minute, Ref: ref2},
		{Index: 3, Name: "lecture_part3.mp3", Start: time.Hour, Length: 30 * time.Minute, Approx: true, Ref: ref3},
	})

	for _, want := range []string{"lecture_part1.mp3", "lecture_part3.mp3", "30:00", "~30:00", "1:00:00", "2.0 KiB", "?", "3 parts"} {
		if !strings.Contains(strings.ToLower(out), strings.ToLower(want)) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if got := render.Results(nil); got != "" {
		t.Errorf("Results(nil) = %q, want empty", got)
	}
}

func TestSaved(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	render.Saved(&buf, "/out", []string{"/out/a_part1.mp3", "/out/a_part2.mp3"})
	out := buf.String()
	if !strings.Contains(out, "Saved 2 parts to /out") || !strings.Contains(out, "  a_part2.mp3") {
		t.Errorf("output = %q", out)
	}
}
