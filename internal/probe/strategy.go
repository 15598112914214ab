package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-audiosplit/internal/ffmpeg"
)

// Prober reads a media duration by one strategy.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// runner is satisfied by *ffmpeg.Executor.
type runner interface {
	RunOutput(ctx context.Context, path string, args []string) (string, error)
}

// ---------------------------------------------------------------------------
// FFprobe
// ---------------------------------------------------------------------------

// FFprobe reads format.duration from ffprobe's JSON report.
type FFprobe struct {
	Binary string
	Run    runner
}

type ffprobeReport struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration implements Prober.
func (f FFprobe) Duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := f.Run.RunOutput(ctx, f.Binary, []string{"-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path})
	if err != nil {
		return 0, &ProbeError{Strategy: "ffprobe", Path: path, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(out))}
	}

	var report ffprobeReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		return 0, &ProbeError{Strategy: "ffprobe", Path: path, Err: fmt.Errorf("parse: %w", err)}
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(report.Format.Duration), 64)
	if err != nil {
		return 0, &ProbeError{Strategy: "ffprobe", Path: path, Err: ErrNoDuration}
	}
	d, err := fromSeconds(seconds)
	if err != nil {
		return 0, &ProbeError{Strategy: "ffprobe", Path: path, Err: err}
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// FFmpeg
// ---------------------------------------------------------------------------

// FFmpeg parses the "Duration:" banner ffmpeg prints when opening an input.
type FFmpeg struct {
	Binary string
	Run    runner
}

// Duration implements Prober.
func (f FFmpeg) Duration(ctx context.Context, path string) (time.Duration, error) {
	// Without an output ffmpeg exits non-zero after printing the input report,
	// so the error is only meaningful when nothing was printed.
	out, err := f.Run.RunOutput(ctx, f.Binary, []string{"-hide_banner", "-i", path})
	if err != nil && out == "" {
		return 0, &ProbeError{Strategy: "ffmpeg", Path: path, Err: err}
	}

	d, err := ParseFFmpegDuration(out)
	if err != nil {
		return 0, &ProbeError{Strategy: "ffmpeg", Path: path, Err: err}
	}
	return d, nil
}

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	timeRe     = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
)

// ParseFFmpegDuration extracts the duration from ffmpeg stderr:
// "Duration: HH:MM:SS.ms", or else the last "time=HH:MM:SS.ms" progress report.
func ParseFFmpegDuration(output string) (time.Duration, error) {
	if m := durationRe.FindStringSubmatch(output); m != nil {
		return positive(parseTimeComponents(m[1], m[2], m[3], m[4]))
	}
	if all := timeRe.FindAllStringSubmatch(output, -1); len(all) > 0 {
		m := all[len(all)-1]
		return positive(parseTimeComponents(m[1], m[2], m[3], m[4]))
	}
	return 0, ErrNoDuration
}

// parseTimeComponents converts HH:MM:SS.frac strings to a Duration.
// frac may carry any number of digits; precision beyond milliseconds is dropped.
func parseTimeComponents(hours, minutes, seconds, fractional string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	if len(fractional) > 3 {
		fractional = fractional[:3]
	}
	fractional += strings.Repeat("0", 3-len(fractional))
	ms, _ := strconv.Atoi(fractional)

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}

// ---------------------------------------------------------------------------
// Chain
// ---------------------------------------------------------------------------

// Chain tries each prober in order and returns the first duration found.
type Chain []Prober

// Duration implements Prober.
func (c Chain) Duration(ctx context.Context, path string) (time.Duration, error) {
	var errs []error
	for _, p := range c {
		d, err := p.Duration(ctx, path)
		if err == nil {
			return d, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return 0, ErrNoDuration
	}
	return 0, errors.Join(errs...)
}

// Deferred builds the real prober on each use, typically once the toolchain is resolved.
type Deferred func(ctx context.Context) (Prober, error)

// Duration implements Prober.
func (d Deferred) Duration(ctx context.Context, path string) (time.Duration, error) {
	p, err := d(ctx)
	if err != nil {
		return 0, &ProbeError{Strategy: "deferred", Path: path, Err: err}
	}
	return p.Duration(ctx, path)
}

// ForModules returns ffprobe (when the toolchain has it) followed by ffmpeg.
func ForModules(m ffmpeg.Modules, exec *ffmpeg.Executor) Prober {
	var c Chain
	if m.FFprobe != "" {
		c = append(c, FFprobe{Binary: m.FFprobe, Run: exec})
	}
	return append(c, FFmpeg{Binary: m.FFmpeg, Run: exec})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func fromSeconds(s float64) (time.Duration, error) {
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return 0, ErrNoDuration
	}
	return time.Duration(s * float64(time.Second)), nil
}

func positive(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, ErrNoDuration
	}
	return d, nil
}
