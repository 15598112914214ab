package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

// ErrOutputLocked indicates another run holds the output directory lock.
var ErrOutputLocked = errors.New("output directory is in use by another audiosplit process")
