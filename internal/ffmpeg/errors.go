package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates no source produced a usable FFmpeg toolchain.
var ErrNotFound = errors.New("ffmpeg not found")

// ErrNoMP3Encoder indicates the binary was built without libmp3lame.
var ErrNoMP3Encoder = errors.New("ffmpeg has no libmp3lame encoder")

// ErrVersionUnknown indicates the version banner could not be read.
var ErrVersionUnknown = errors.New("cannot read ffmpeg version")

// ErrUnsupportedPlatform indicates the OS/architecture has no pinned static build.
var ErrUnsupportedPlatform = errors.New("unsupported platform for FFmpeg download")

// ErrChecksumMismatch indicates a downloaded file's checksum verification failed.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ErrDownloadFailed indicates a file download could not be completed.
var ErrDownloadFailed = errors.New("download failed")

// Attempt records why one source was rejected.
type Attempt struct {
	Source string
	Err    error
}

// ModuleLoadError aggregates the rejection of every source.
type ModuleLoadError struct {
	Attempts []Attempt
}

func (e *ModuleLoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: tried %d source(s)", ErrNotFound, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s: %v", a.Source, a.Err)
	}
	return b.String()
}

// Unwrap lets errors.Is(err, ErrNotFound) match.
func (e *ModuleLoadError) Unwrap() error { return ErrNotFound }
