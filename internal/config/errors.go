package config

import (
	"errors"
)

// Sentinel error kinds for this package, matchable with errors.Is.
var (
	// ErrInvalidConfig reports a loaded configuration that fails validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig reports a failure reading or merging a config source.
	ErrLoadConfig = errors.New("load config failed")
)
