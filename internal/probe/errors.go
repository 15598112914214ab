package probe

import (
	"errors"
	"fmt"
)

// ErrNoDuration indicates the media reports no usable duration.
var ErrNoDuration = errors.New("no usable duration")

// ProbeError describes why a duration could not be read. It never escapes
// Probe: it is logged and turned into an unknown duration.
type ProbeError struct {
	Strategy string
	Path     string
	Err      error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s probe %s: %v", e.Strategy, e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
