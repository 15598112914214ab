package artifact

import "errors"

// ErrOutputExists indicates the save destination already exists.
var ErrOutputExists = errors.New("output file already exists")

// ErrEmptyRef indicates an operation on a zero Ref.
var ErrEmptyRef = errors.New("empty artifact reference")
