package feed

import (
	"net/http"
	"time"

	"github.com/okian/pickem/internal/domain/event"
	"github.com/okian/pickem/pkg/logger"
)

// Option configures a Hook.
type Option func(*Hook)

// WithUserID attaches a caller identity so user-scoped events are
// included alongside global ones.
func WithUserID(id string) Option {
	return func(h *Hook) {
		h.userID = id
	}
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Hook) {
		if c != nil {
			h.client = c
		}
	}
}

// WithMaxAttempts bounds consecutive failed streaming attempts before
// the permanent polling downgrade.
func WithMaxAttempts(n int) Option {
	return func(h *Hook) {
		if n > 0 {
			h.maxAttempts = n
		}
	}
}

// WithBackoff sets the wait between streaming attempts.
func WithBackoff(d time.Duration) Option {
	return func(h *Hook) {
		if d > 0 {
			h.backoff = d
		}
	}
}

// WithIdleTimeout sets how long the stream may stay silent before the
// hook declares the link dead and reconnects. Server heartbeats reset
// it, so anything comfortably above the heartbeat interval works.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Hook) {
		if d > 0 {
			h.idleTimeout = d
		}
	}
}

// WithPollInterval sets the polling cadence after the downgrade.
func WithPollInterval(d time.Duration) Option {
	return func(h *Hook) {
		if d > 0 {
			h.pollInterval = d
		}
	}
}

// WithDedupeSize sets how many recent event ids the hook remembers.
func WithDedupeSize(n int) Option {
	return func(h *Hook) {
		if n > 0 {
			h.seen = newDedupeRing(n)
		}
	}
}

// WithCursor resumes delivery after a previously persisted event id.
func WithCursor(id int64) Option {
	return func(h *Hook) {
		if id > 0 {
			h.cursor.Store(id)
		}
	}
}

// WithBufferSize sets the delivery channel capacity.
func WithBufferSize(n int) Option {
	return func(h *Hook) {
		if n > 0 {
			h.events = make(chan event.Event, n)
		}
	}
}

// WithLogger replaces the hook's logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hook) {
		if l != nil {
			h.log = l
		}
	}
}
