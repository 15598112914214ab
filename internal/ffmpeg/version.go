package ffmpeg

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Versions below this may lack libmp3lame defaults and "-ss" accuracy fixes.
const minFFmpegMajorVersion = 4

// VersionChecker reads and vets the engine version banner.
type VersionChecker struct {
	executor *Executor
	logger   hclog.Logger
}

// VersionCheckerOption configures a VersionChecker.
type VersionCheckerOption func(*VersionChecker)

// WithVersionExecutor sets the executor for running FFmpeg.
func WithVersionExecutor(e *Executor) VersionCheckerOption {
	return func(vc *VersionChecker) { vc.executor = e }
}

// WithVersionLogger sets the logger for old-version warnings.
func WithVersionLogger(l hclog.Logger) VersionCheckerOption {
	return func(vc *VersionChecker) { vc.logger = l }
}

// NewVersionChecker creates a VersionChecker with the given options.
func NewVersionChecker(opts ...VersionCheckerOption) *VersionChecker {
	vc := &VersionChecker{
		executor: NewExecutor(),
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(vc)
	}
	return vc
}

// Version runs "path -version" and returns the version token.
// A version below the supported major is logged, not rejected.
func (vc *VersionChecker) Version(ctx context.Context, path string) (string, error) {
	output, err := vc.executor.RunOutput(ctx, path, []string{"-version"})
	if err != nil && output == "" {
		return "", fmt.Errorf("%w: %v", ErrVersionUnknown, err)
	}

	version, major, ok := ParseVersion(output)
	if !ok {
		return "", ErrVersionUnknown
	}
	if major > 0 && major < minFFmpegMajorVersion {
		vc.logger.Warn("old ffmpeg detected", "version", version, "recommended", fmt.Sprintf("%d+", minFFmpegMajorVersion))
	}
	return version, nil
}

// ParseVersion extracts the version from a banner such as
// "ffmpeg version 6.1.1 Copyright ..." or "ffmpeg version n6.1.1-3ubuntu5 ...".
// major is 0 for builds whose version is a git describe string.
func ParseVersion(output string) (version string, major int, ok bool) {
	first, _, _ := strings.Cut(output, "\n")
	fields := strings.Fields(first)
	if len(fields) < 3 || fields[1] != "version" {
		return "", 0, false
	}
	version = fields[2]

	if _, err := fmt.Sscanf(strings.TrimPrefix(version, "n"), "%d", &major); err != nil {
		major = 0
	}
	return version, major, true
}
