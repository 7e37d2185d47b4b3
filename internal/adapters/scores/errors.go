package scores

import "errors"

// Sentinel kinds for score source errors.
var (
	ErrBadSource = errors.New("score source misconfigured")
	ErrFetch     = errors.New("score fetch failed")
	ErrMalformed = errors.New("score payload malformed")
)
