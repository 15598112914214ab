// Package render draws progress, file details and results on the terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/alnah/go-audiosplit/internal/format"
	"github.com/alnah/go-audiosplit/internal/split"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

// Progress shows orchestrator progress as a bar on a terminal and as
// "NN% status" lines elsewhere. It is safe for concurrent use.
type Progress struct {
	w   io.Writer
	bar *progressbar.ProgressBar

	mu      sync.Mutex
	percent int
	status  string
	started bool
}

// ProgressOption configures a Progress.
type ProgressOption func(*progressConfig)

type progressConfig struct {
	bar    bool
	barSet bool
}

// WithBar forces the bar on or off instead of detecting a terminal.
func WithBar(on bool) ProgressOption {
	return func(c *progressConfig) { c.bar, c.barSet = on, true }
}

// NewProgress creates a Progress writing to w.
func NewProgress(w io.Writer, opts ...ProgressOption) *Progress {
	var cfg progressConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.barSet {
		cfg.bar = IsTerminal(w)
	}

	p := &Progress{w: w, percent: -1}
	if cfg.bar {
		p.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(w) }),
		)
	}
	return p
}

// Update renders pr. Plain output only prints when the rounded percentage or
// the status changes.
func (p *Progress) Update(pr split.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pct := int(min(max(pr.Percent, 0), 100))
	if p.bar != nil {
		p.bar.Describe(pr.Status)
		_ = p.bar.Set(pct)
		p.started = true
		return
	}
	if pct == p.percent && pr.Status == p.status {
		return
	}
	p.percent, p.status = pct, pr.Status
	_, _ = fmt.Fprintf(p.w, "%s %s\n", format.Percent(pr.Percent), pr.Status)
}

// Abort leaves the bar where it stopped and moves to a fresh line.
func (p *Progress) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil && p.started {
		_ = p.bar.Exit()
		_, _ = fmt.Fprintln(p.w)
	}
}

// ---------------------------------------------------------------------------
// File details
// ---------------------------------------------------------------------------

// FileInfo writes the selected file's details. Duration and expected parts are
// shown once known.
func FileInfo(w io.Writer, info split.Info, segment time.Duration) {
	f := info.File
	_, _ = fmt.Fprintf(w, "File:     %s\n", f.Name)
	if f.Title != "" {
		_, _ = fmt.Fprintf(w, "Title:    %s\n", f.Title)
	}
	_, _ = fmt.Fprintf(w, "Size:     %s\n", format.Size(f.Size))
	if info.Known {
		_, _ = fmt.Fprintf(w, "Duration: %s\n", split.FormatTime(info.Duration))
		_, _ = fmt.Fprintf(w, "Expected: %s of %s\n", format.Parts(info.ExpectedParts), format.DurationHuman(segment))
	} else {
		_, _ = fmt.Fprintln(w, "Duration: unknown (parts are cut until the audio ends)")
	}
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// Results renders the produced parts as a table.
func Results(tasks []split.Task) string {
	if len(tasks) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Name", "Start", "Length", "Size"})

	var total int64
	for _, t := range tasks {
		length := "?"
		if t.Length > 0 {
			length = split.FormatTime(t.Length)
			if t.Approx {
				length = "~" + length
			}
		}
		tw.AppendRow(table.Row{
			strconv.Itoa(t.Index),
			t.Name,
			split.FormatTime(t.Start),
			length,
			format.Size(t.Size()),
		})
		total += t.Size()
	}
	tw.AppendFooter(table.Row{"", format.Parts(len(tasks)), "", "", format.Size(total)})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// Saved lists written files, one per line, relative to dir when possible.
func Saved(w io.Writer, dir string, paths []string) {
	if len(paths) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "Saved %s to %s\n", format.Parts(len(paths)), dir)
	for _, p := range paths {
		name := strings.TrimPrefix(strings.TrimPrefix(p, dir), string(os.PathSeparator))
		_, _ = fmt.Fprintf(w, "  %s\n", name)
	}
}
