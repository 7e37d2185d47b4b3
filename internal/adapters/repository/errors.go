package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrGameNotFound = errors.New("game not found")
	ErrPickNotFound = errors.New("pick not found")
	ErrInvalidLimit = errors.New("invalid page limit")
)
