// Package logging builds the diagnostic logger shared by every package.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings for the log file.
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// ErrInvalidLevel indicates an unknown log level name.
var ErrInvalidLevel = errors.New("invalid log level")

// Options configures New.
type Options struct {
	Name   string    // default "audiosplit"
	Level  string    // trace, debug, info, warn, error or off; default warn
	File   string    // rotating JSON log file, disabled when empty
	Stderr io.Writer // default os.Stderr
}

// Logger is the constructed logger and the file it may own.
type Logger struct {
	hclog.Logger
	file *lumberjack.Logger
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel converts a level name to an hclog level.
func ParseLevel(s string) (hclog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return hclog.Warn, nil
	}
	level := hclog.LevelFromString(s)
	if level == hclog.NoLevel {
		return hclog.NoLevel, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return level, nil
}

// New creates a logger writing human-readable lines to Stderr and, when File is
// set, JSON lines to a rotating file at the same level.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "audiosplit"
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	base := hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:   opts.Name,
		Level:  level,
		Output: opts.Stderr,
	})
	l := &Logger{Logger: base}

	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		base.RegisterSink(hclog.NewSinkAdapter(&hclog.LoggerOptions{
			Level:      level,
			Output:     l.file,
			JSONFormat: true,
		}))
	}
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: hclog.NewNullLogger()}
}
