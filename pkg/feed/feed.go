// Package feed is the client-side delivery hook for the event feed. It
// consumes the NDJSON stream, reconnects with a bounded attempt budget,
// and downgrades permanently to polling when streaming stays broken.
// Every event crosses a short dedupe window before delivery, so the
// catch-up overlap after a reconnect never reaches the caller twice.
package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pickem/internal/domain/event"
	"github.com/okian/pickem/pkg/logger"
)

// Default hook configuration constants.
const (
	defaultMaxAttempts  = 5
	defaultBackoff      = 2 * time.Second
	defaultPollInterval = 10 * time.Second
	// Servers heartbeat every 30s; 2.5 intervals of silence means the
	// link is dead, not quiet.
	defaultIdleTimeout = 75 * time.Second
	defaultDedupeSize  = 100
	defaultBufferSize  = 64
	defaultPollLimit   = 100
)

// UserHeader carries the caller identity for per-user scoped events.
const UserHeader = "X-Pickem-User"

// Hook connects to a feed server and delivers events on a channel. A
// hook is single-use: construct, Run until the context ends, read from
// Events until it closes.
type Hook struct {
	base         string
	userID       string
	client       *http.Client
	maxAttempts  int
	backoff      time.Duration
	pollInterval time.Duration
	idleTimeout  time.Duration
	log          logger.Logger

	mu    sync.Mutex
	state State

	cursor atomic.Int64
	seen   *dedupeRing
	events chan event.Event
}

// NewHook creates a hook for the feed server at baseURL.
func NewHook(baseURL string, opts ...Option) *Hook {
	h := &Hook{
		base:         baseURL,
		client:       &http.Client{},
		maxAttempts:  defaultMaxAttempts,
		backoff:      defaultBackoff,
		pollInterval: defaultPollInterval,
		idleTimeout:  defaultIdleTimeout,
		log:          logger.Named("feed"),
		state:        StateConnecting,
		events:       make(chan event.Event, defaultBufferSize),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.seen == nil {
		h.seen = newDedupeRing(defaultDedupeSize)
	}
	return h
}

// Events returns the delivery channel. It closes when Run returns.
func (h *Hook) Events() <-chan event.Event {
	return h.events
}

// State returns the current transport position.
func (h *Hook) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Cursor returns the highest event id delivered so far.
func (h *Hook) Cursor() int64 {
	return h.cursor.Load()
}

func (h *Hook) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Run drives the hook until ctx ends. It returns ctx.Err() and closes
// the delivery channel on the way out.
func (h *Hook) Run(ctx context.Context) error {
	defer close(h.events)

	attempts := 0
	for ctx.Err() == nil {
		switch h.State() {
		case StateConnecting:
			err := h.streamOnce(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if h.State() == StateConnected {
				// The stream was open and delivering; the attempt
				// budget applies to consecutive failures only.
				attempts = 0
			}
			h.log.Debug(ctx, "stream ended", logger.Error(err), logger.Int("attempts", attempts))
			next, n := Transition(h.State(), InputError, attempts, h.maxAttempts)
			attempts = n
			h.setState(next)
		case StateReconnecting:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.backoff):
			}
			next, n := Transition(StateReconnecting, InputRetry, attempts, h.maxAttempts)
			attempts = n
			h.setState(next)
		case StatePolling:
			h.log.Info(ctx, "streaming exhausted; polling for the rest of the session",
				logger.Int("attempts", attempts),
				logger.Duration("interval", h.pollInterval),
			)
			return h.pollLoop(ctx)
		default:
			// Connected is only ever set inside streamOnce.
			h.setState(StateConnecting)
		}
	}
	return ctx.Err()
}

// streamOnce opens the NDJSON stream and consumes it until it breaks.
// A non-nil error is always returned: either the open failed or the
// connection ended. An idle watchdog aborts the request when the
// server goes silent past the idle timeout, so a half-open connection
// cannot block the read forever; heartbeats exist to keep it fed.
func (h *Hook) streamOnce(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	u := fmt.Sprintf("%s/feed/stream?lastEventId=%d", h.base, h.Cursor())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	if h.userID != "" {
		req.Header.Set(UserHeader, h.userID)
	}

	idle := time.AfterFunc(h.idleTimeout, cancel)
	defer idle.Stop()

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", h.stalledOr(ctx, streamCtx, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open stream: %w (status %d)", ErrStreamRejected, resp.StatusCode)
	}

	h.setState(StateConnected)
	h.log.Debug(ctx, "stream connected", logger.Int64("cursor", h.Cursor()))

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		idle.Reset(h.idleTimeout)
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var f wireFrame
		if err := json.Unmarshal(line, &f); err != nil {
			h.log.Warn(ctx, "malformed frame skipped", logger.Error(err))
			continue
		}
		if f.ID == 0 {
			// Heartbeat. Nothing to deliver; resetting the watchdog above
			// was the whole point.
			continue
		}
		if !h.deliver(ctx, event.Event{
			ID:      f.ID,
			Kind:    event.Kind(f.Type),
			Scope:   f.Scope,
			Payload: f.Payload,
		}) {
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stream: %w", h.stalledOr(ctx, streamCtx, err))
	}
	return ErrStreamClosed
}

// stalledOr maps a watchdog-triggered abort onto ErrStreamStalled.
// Failures with the parent context still live and the stream context
// canceled can only come from the idle timer.
func (h *Hook) stalledOr(parent, stream context.Context, err error) error {
	if parent.Err() == nil && stream.Err() != nil {
		return ErrStreamStalled
	}
	return err
}

// pollLoop fetches pages on a fixed cadence. It never upgrades back to
// streaming.
func (h *Hook) pollLoop(ctx context.Context) error {
	tick := time.NewTicker(h.pollInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if err := h.pollOnce(ctx); err != nil && ctx.Err() == nil {
				h.log.Warn(ctx, "poll failed", logger.Error(err))
			}
		}
	}
}

// pollOnce drains every page past the cursor.
func (h *Hook) pollOnce(ctx context.Context) error {
	for {
		u := fmt.Sprintf("%s/feed/poll?lastEventId=%d&limit=%d", h.base, h.Cursor(), defaultPollLimit)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("build poll request: %w", err)
		}
		if h.userID != "" {
			req.Header.Set(UserHeader, h.userID)
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		var page event.Page
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("poll: unexpected status %d", resp.StatusCode)
		}
		if err != nil {
			return fmt.Errorf("decode poll page: %w", err)
		}
		for _, e := range page.Events {
			if !h.deliver(ctx, e) {
				return ctx.Err()
			}
		}
		if !page.HasMore {
			return nil
		}
	}
}

// deliver advances the cursor and hands the event to the caller unless
// the dedupe window already saw it. Returns false when ctx ended.
func (h *Hook) deliver(ctx context.Context, e event.Event) bool {
	if e.ID > h.cursor.Load() {
		h.cursor.Store(e.ID)
	}
	if h.seen.SeenAndRecord(e.ID) {
		return true
	}
	select {
	case h.events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// wireFrame mirrors one NDJSON line from the server. Heartbeat frames
// carry no id.
type wireFrame struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Scope   string          `json:"scope"`
	Payload json.RawMessage `json:"payload"`
	TS      string          `json:"ts"`
}
