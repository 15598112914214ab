package split

import (
	"errors"
	"fmt"
)

// ErrBusy indicates Process was called while a run is active.
var ErrBusy = errors.New("processing already in progress")

// ErrNoFile indicates Process or Wait was called before Select.
var ErrNoFile = errors.New("no file selected")

// ErrInvalidOptions indicates Options failed validation.
var ErrInvalidOptions = errors.New("invalid split options")

// ErrConversion indicates the video could not be converted to MP3.
var ErrConversion = errors.New("conversion failed")

// SegmentExecError reports the part whose extraction failed in exact mode.
type SegmentExecError struct {
	Index int
	Err   error
}

func (e *SegmentExecError) Error() string {
	return fmt.Sprintf("segment %d failed: %v", e.Index, e.Err)
}

func (e *SegmentExecError) Unwrap() error { return e.Err }
