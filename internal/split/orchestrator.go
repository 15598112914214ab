// Package split converts a video to MP3 with the engine and cuts the audio into
// fixed-length parts.
package split

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/alnah/go-audiosplit/internal/artifact"
	"github.com/alnah/go-audiosplit/internal/engine"
)

// Working storage entry names.
const (
	inputEntry  = "input.mp4"
	outputEntry = "output.mp3"
)

// Progress milestones and their status lines.
const (
	convertedPercent = 40.0
	slicePercentSpan = 100.0 - convertedPercent

	StatusConverting = "Converting video to MP3..."
	StatusConverted  = "Conversion complete, splitting..."
	StatusComplete   = "Split complete!"
	StatusFailed     = "Processing failed"
)

// Task is one produced part.
type Task struct {
	Index  int
	Name   string
	Start  time.Duration
	Length time.Duration
	Approx bool // Length is the requested window, the duration was unknown
	Ref    artifact.Ref
}

// Size returns the part size in bytes.
func (t Task) Size() int64 { return t.Ref.Size() }

// Progress is the run's completion state.
type Progress struct {
	Percent float64
	Status  string
}

// ProgressFunc receives every progress update.
type ProgressFunc func(Progress)

// Input is the video being processed.
type Input interface {
	BaseName() string
	Open() (io.ReadCloser, error)
}

// loader makes the engine ready.
type loader interface {
	EnsureLoaded(ctx context.Context) error
	Engine() engine.Engine
}

// streamProbe measures the duration of a stream.
type streamProbe interface {
	Reader(ctx context.Context, r io.Reader) (time.Duration, bool)
}

// Orchestrator runs one conversion-and-split at a time.
type Orchestrator struct {
	session  loader
	probe    streamProbe
	registry *artifact.Registry
	opts     Options
	logger   hclog.Logger

	mu         sync.Mutex
	processing bool
	tasks      []Task
	progress   Progress
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger for cleanup failures and run diagnostics.
func WithLogger(l hclog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator validates opts and creates an Orchestrator.
func NewOrchestrator(session loader, probe streamProbe, registry *artifact.Registry, opts Options, options ...OrchestratorOption) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		session:  session,
		probe:    probe,
		registry: registry,
		opts:     opts,
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// Process converts in to MP3 and splits it. Only one run may be active; a call
// during a run returns ErrBusy and leaves everything untouched.
func (o *Orchestrator) Process(ctx context.Context, in Input, onProgress ProgressFunc) (tasks []Task, err error) {
	o.mu.Lock()
	if o.processing {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.processing = true
	prior := o.tasks
	o.tasks = nil
	o.progress = Progress{}
	o.mu.Unlock()

	o.revoke(prior)

	r := &run{o: o, in: in, onProgress: onProgress}
	defer func() {
		r.cleanup()
		if err != nil {
			o.revoke(r.tasks)
		}

		o.mu.Lock()
		o.processing = false
		if err == nil {
			o.tasks = r.tasks
			o.mu.Unlock()
			return
		}
		o.tasks = nil
		o.progress = Progress{Percent: 0, Status: StatusFailed}
		o.mu.Unlock()
		if onProgress != nil {
			onProgress(Progress{Percent: 0, Status: StatusFailed})
		}
	}()

	if err := r.execute(ctx); err != nil {
		return nil, err
	}
	return append([]Task(nil), r.tasks...), nil
}

// Tasks returns the parts of the last successful run.
func (o *Orchestrator) Tasks() []Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Task(nil), o.tasks...)
}

// Progress returns the latest progress.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// Processing reports whether a run is active.
func (o *Orchestrator) Processing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.processing
}

// Reset releases the parts of the last run and clears progress.
// It is a no-op while a run is active.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	if o.processing {
		o.mu.Unlock()
		return
	}
	tasks := o.tasks
	o.tasks = nil
	o.progress = Progress{}
	o.mu.Unlock()

	o.revoke(tasks)
}

// report records p and forwards it. Percent never moves backwards within a run.
func (o *Orchestrator) report(fn ProgressFunc, p Progress) {
	o.mu.Lock()
	p.Percent = max(p.Percent, o.progress.Percent)
	o.progress = p
	o.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (o *Orchestrator) revoke(tasks []Task) {
	for _, t := range tasks {
		if err := o.registry.Revoke(t.Ref); err != nil {
			o.logger.Warn("failed to release part", "name", t.Name, "error", err)
		}
	}
}

// ---------------------------------------------------------------------------
// run - state of a single Process call
// ---------------------------------------------------------------------------

type run struct {
	o          *Orchestrator
	in         Input
	onProgress ProgressFunc
	eng        engine.Engine
	tasks      []Task
}

func (r *run) execute(ctx context.Context) error {
	if err := r.o.session.EnsureLoaded(ctx); err != nil {
		return err
	}
	r.eng = r.o.session.Engine()
	if r.eng == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return engine.ErrReset
	}

	if err := r.convert(ctx); err != nil {
		return err
	}

	duration, known := r.probeOutput(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	if known {
		r.o.logger.Debug("splitting by duration", "duration", duration)
		err = r.splitExact(ctx, duration)
	} else {
		r.o.logger.Debug("duration unknown, splitting blind")
		err = r.splitBlind(ctx)
	}
	if err != nil {
		return err
	}

	r.o.report(r.onProgress, Progress{Percent: 100, Status: StatusComplete})
	return nil
}

// convert writes the video into working storage and extracts its audio track.
func (r *run) convert(ctx context.Context) error {
	src, err := r.in.Open()
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = src.Close() }()

	if err := r.eng.WriteEntry(ctx, inputEntry, src); err != nil {
		return fmt.Errorf("load input: %w", err)
	}

	r.o.report(r.onProgress, Progress{Percent: 0, Status: StatusConverting})

	args := append([]string{"-i", inputEntry, "-vn"}, r.o.opts.encodeArgs()...)
	args = append(args, outputEntry)
	if err := r.eng.Exec(ctx, args); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrConversion, err)
	}

	r.o.report(r.onProgress, Progress{Percent: convertedPercent, Status: StatusConverted})
	return nil
}

// probeOutput measures the converted audio, independently of any source probe.
func (r *run) probeOutput(ctx context.Context) (time.Duration, bool) {
	rc, err := r.eng.OpenEntry(ctx, outputEntry)
	if err != nil {
		r.o.logger.Debug("cannot open converted audio for probing", "error", err)
		return 0, false
	}
	defer func() { _ = rc.Close() }()
	return r.o.probe.Reader(ctx, rc)
}

func (r *run) splitExact(ctx context.Context, duration time.Duration) error {
	segments := Plan(duration, r.o.opts.SegmentLength)
	for _, seg := range segments {
		if err := r.slice(ctx, seg); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &SegmentExecError{Index: seg.Index, Err: err}
		}
		ref, err := r.collect(ctx, seg.Index)
		if err != nil {
			return err
		}
		r.record(seg, ref, false)

		pct := convertedPercent + slicePercentSpan*float64(seg.Index)/float64(len(segments))
		r.o.report(r.onProgress, Progress{Percent: pct, Status: r.partStatus(seg.Index, len(segments))})
	}
	return nil
}

// splitBlind cuts consecutive segments until the engine fails, a part comes out
// too small to hold audio, or MaxBlindParts is reached.
func (r *run) splitBlind(ctx context.Context) error {
	opts := r.o.opts
	for i := 1; i <= opts.MaxBlindParts; i++ {
		seg := Segment{Index: i, Start: time.Duration(i-1) * opts.SegmentLength, Length: opts.SegmentLength}
		if err := r.slice(ctx, seg); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.o.logger.Debug("blind split reached the end", "part", i, "error", err)
			return nil
		}

		ref, err := r.collect(ctx, i)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.o.logger.Debug("blind split produced no part", "part", i, "error", err)
			return nil
		}
		if ref.Size() < opts.MinPartBytes {
			r.o.logger.Debug("blind split produced an empty part", "part", i, "bytes", ref.Size())
			if err := r.o.registry.Revoke(ref); err != nil {
				r.o.logger.Warn("failed to release part", "part", i, "error", err)
			}
			return nil
		}
		r.record(seg, ref, true)

		pct := convertedPercent + min(slicePercentSpan*float64(i)/float64(opts.MaxBlindParts), slicePercentSpan)
		r.o.report(r.onProgress, Progress{Percent: pct, Status: fmt.Sprintf("Created part %d", i)})
	}
	return nil
}

func (r *run) slice(ctx context.Context, seg Segment) error {
	args := []string{
		"-i", outputEntry,
		"-ss", formatFFmpegTime(seg.Start),
		"-t", formatFFmpegTime(seg.Length),
	}
	args = append(args, r.o.opts.encodeArgs()...)
	args = append(args, partEntry(seg.Index, r.o.opts.Extension))
	return r.eng.Exec(ctx, args)
}

// collect streams a part out of working storage into a registry ref and deletes
// the entry.
func (r *run) collect(ctx context.Context, index int) (artifact.Ref, error) {
	entry := partEntry(index, r.o.opts.Extension)
	rc, err := r.eng.OpenEntry(ctx, entry)
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("read part %d: %w", index, err)
	}
	ref, err := r.o.registry.Materialize(rc, "audiosplit-part-*."+r.o.opts.Extension, 0o600)
	_ = rc.Close()
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("store part %d: %w", index, err)
	}
	if err := r.eng.DeleteEntry(context.WithoutCancel(ctx), entry); err != nil {
		r.o.logger.Warn("failed to delete part entry", "entry", entry, "error", err)
	}
	return ref, nil
}

func (r *run) record(seg Segment, ref artifact.Ref, approx bool) {
	r.tasks = append(r.tasks, Task{
		Index:  seg.Index,
		Name:   PartName(r.in.BaseName(), seg.Index, r.o.opts.Extension),
		Start:  seg.Start,
		Length: seg.Length,
		Approx: approx,
		Ref:    ref,
	})
}

func (r *run) partStatus(i, n int) string {
	return fmt.Sprintf("Created part %d of %d", i, n)
}

// cleanup deletes the intermediate entries. Failures are logged only.
func (r *run) cleanup() {
	if r.eng == nil {
		return
	}
	ctx := context.Background()
	for _, entry := range []string{inputEntry, outputEntry} {
		if err := r.eng.DeleteEntry(ctx, entry); err != nil && !errors.Is(err, engine.ErrClosed) {
			r.o.logger.Debug("cleanup", "entry", entry, "error", err)
		}
	}
}

func partEntry(index int, ext string) string {
	return fmt.Sprintf("part%d.%s", index, ext)
}

// PartName is the saved file name of part index: "<base>_part<index>.<ext>".
func PartName(base string, index int, ext string) string {
	return fmt.Sprintf("%s_part%d.%s", base, index, ext)
}
