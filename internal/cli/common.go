package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-audiosplit/internal/config"
	"github.com/alnah/go-audiosplit/internal/logging"
	"github.com/alnah/go-audiosplit/internal/source"
	"github.com/alnah/go-audiosplit/internal/split"
)

// lockFileName is created in the output directory while parts are written.
const lockFileName = ".audiosplit.lock"

// newLogger builds the diagnostic logger from the loaded configuration.
func newLogger(env *Env, cfg config.Config) (*logging.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Stderr: env.Stderr,
	})
}

// splitOptions maps configuration onto split.Options.
func splitOptions(cfg config.Config) split.Options {
	opts := split.DefaultOptions()
	opts.SegmentLength = time.Duration(cfg.SegmentLength) * time.Second
	opts.Bitrate = cfg.Bitrate
	opts.MaxBlindParts = cfg.MaxBlindParts
	opts.MinPartBytes = cfg.MinPartBytes
	return opts
}

// confirmer returns the confirmation callback for files above the soft limit.
// assumeYes accepts without asking; a non-interactive stdin declines.
func confirmer(env *Env, assumeYes bool) func(source.File) bool {
	return func(f source.File) bool {
		fmt.Fprintf(env.Stderr, "Warning: %s\n", f.Warning())
		if assumeYes {
			return true
		}
		if env.Interactive == nil || !env.Interactive() {
			fmt.Fprintln(env.Stderr, "Re-run with --yes to process it anyway.")
			return false
		}
		return prompt(env.Stdin, env.Stderr, "Continue? [y/N] ")
	}
}

// prompt asks a yes/no question; anything but y or yes is a no.
func prompt(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprint(w, question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// lockOutputDir takes the output directory lock, failing fast when another run holds it.
func lockOutputDir(env *Env, dir string) (Lock, error) {
	lock := env.Locker.NewLock(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, dir)
	}
	return lock, nil
}

// loadConfig loads the configuration through env.
func loadConfig(ctx context.Context, env *Env) (config.Config, error) {
	cfg, err := env.ConfigLoader.Load(ctx)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
