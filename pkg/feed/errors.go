package feed

import "errors"

// Sentinel errors surfaced by the hook.
var (
	// ErrStreamRejected means the server answered the stream request
	// with a non-200 status.
	ErrStreamRejected = errors.New("stream rejected")
	// ErrStreamClosed means the server ended the stream normally.
	ErrStreamClosed = errors.New("stream closed by server")
	// ErrStreamStalled means no frame or heartbeat arrived within the
	// idle timeout; the connection is presumed half-open.
	ErrStreamStalled = errors.New("stream stalled")
)
