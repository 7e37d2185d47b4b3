package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadCursor         = errors.New("bad cursor")
	ErrBadLimit          = errors.New("bad limit")
	ErrStreamUnsupported = errors.New("streaming unsupported by connection")
	ErrNoReconciler      = errors.New("reconciler not configured")
)
