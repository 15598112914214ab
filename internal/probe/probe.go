// Package probe reports media durations. It never fails: anything it cannot
// measure is reported as unknown.
package probe

import (
	"context"
	"io"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/alnah/go-audiosplit/internal/artifact"
)

const tempPattern = "audiosplit-probe-*"

// Probe measures durations of files and streams.
type Probe struct {
	prober   Prober
	registry *artifact.Registry
	logger   hclog.Logger
}

// Option configures a Probe.
type Option func(*Probe)

// WithLogger sets the logger for probe failures (debug level).
func WithLogger(l hclog.Logger) Option {
	return func(p *Probe) { p.logger = l }
}

// New creates a Probe. Streams passed to Reader are materialized in registry.
func New(prober Prober, registry *artifact.Registry, opts ...Option) *Probe {
	p := &Probe{
		prober:   prober,
		registry: registry,
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// File returns the duration of the media at path, and false when unknown.
func (p *Probe) File(ctx context.Context, path string) (time.Duration, bool) {
	d, err := p.prober.Duration(ctx, path)
	if err != nil {
		p.logger.Debug("duration unknown", "path", path, "error", err)
		return 0, false
	}
	return d, true
}

// Reader materializes r, probes it and releases the copy before returning.
func (p *Probe) Reader(ctx context.Context, r io.Reader) (time.Duration, bool) {
	ref, err := p.registry.Materialize(r, tempPattern, 0o600)
	if err != nil {
		p.logger.Debug("duration unknown", "error", err)
		return 0, false
	}
	defer func() {
		if err := p.registry.Revoke(ref); err != nil {
			p.logger.Debug("failed to release probe copy", "path", ref.Path(), "error", err)
		}
	}()

	return p.File(ctx, ref.Path())
}
