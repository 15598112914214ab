package config

import "errors"

var (
	// ErrUnknownKey indicates a key that is not a supported setting.
	ErrUnknownKey = errors.New("unknown config key")

	// ErrInvalidValue indicates a value that cannot be stored for its key.
	ErrInvalidValue = errors.New("invalid config value")

	// ErrInvalidConfig indicates a loaded configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)
