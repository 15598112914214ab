package source

import "errors"

// ErrFileNotFound indicates the input path does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrUnsupportedFormat indicates the input is not an MP4/M4V video.
var ErrUnsupportedFormat = errors.New("unsupported format: select an MP4 or M4V video")

// ErrTooLarge indicates the input exceeds the hard size limit.
var ErrTooLarge = errors.New("file too large")

// ErrNotConfirmed indicates a large file was declined at the confirmation prompt.
var ErrNotConfirmed = errors.New("large file not confirmed")
