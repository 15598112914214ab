package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const outputPerm = 0o644

// Save writes the payload of ref to dest.
//
// The bytes are staged in a temporary file next to dest and moved into place once
// fully written, so dest never holds a partial part. The staging file is private to
// this call: it is released before Save returns and never enters the registry.
// Without overwrite, an existing dest yields ErrOutputExists.
func (r *Registry) Save(ref Ref, dest string, overwrite bool) error {
	src, err := r.Open(ref)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = src.Close() }()

	staging, err := r.fs.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("cannot create staging file: %w", err)
	}
	stagingPath := staging.Name()
	defer func() { _ = r.fs.Remove(stagingPath) }()

	writeErr := func() error {
		defer func() { _ = staging.Close() }()
		if _, err := io.Copy(staging, src); err != nil {
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
		return staging.Sync()
	}()
	if writeErr != nil {
		return writeErr
	}
	if err := r.fs.Chmod(stagingPath, outputPerm); err != nil {
		return fmt.Errorf("chmod %s: %w", dest, err)
	}

	if overwrite {
		if err := r.fs.Rename(stagingPath, dest); err != nil {
			return fmt.Errorf("cannot move %s into place: %w", dest, err)
		}
		return nil
	}

	// Link fails when dest exists, which makes the existence check and the
	// publish a single step.
	if err := r.fs.Link(stagingPath, dest); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", dest, ErrOutputExists)
		}
		return fmt.Errorf("cannot move %s into place: %w", dest, err)
	}
	return nil
}
