// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pickem/internal/domain/event"
	"github.com/okian/pickem/pkg/logger"
	"github.com/okian/pickem/pkg/metrics"
)

// Default streaming configuration constants.
const (
	defaultTailInterval      = 2 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultStreamLimit       = 200
)

// StreamHandler holds one long-lived NDJSON response per client and
// tails the log for it. Connections are fully independent: each owns
// its timers and cursor and shares nothing in-process with its peers.
type StreamHandler struct {
	deps         Dependencies
	scope        ScopeResolver
	tailInterval time.Duration
	heartbeat    time.Duration
	limit        int
	logger       logger.Logger
}

// NewStreamHandler creates a new streaming handler.
func NewStreamHandler(deps Dependencies, scope ScopeResolver, tail, heartbeat time.Duration, limit int) *StreamHandler {
	return &StreamHandler{
		deps:         deps,
		scope:        scope,
		tailInterval: tail,
		heartbeat:    heartbeat,
		limit:        limit,
		logger:       logger.Named("stream"),
	}
}

// frame is one line on the wire. Event frames carry the id the client
// must persist as its new cursor; heartbeat frames carry only a
// timestamp so intermediaries keep the connection alive.
type frame struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Scope   string          `json:"scope,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	TS      string          `json:"ts,omitempty"`
}

// HandleStream handles GET /feed/stream requests.
//
// Protocol: read lastEventId (0 if absent), flush everything since it,
// then alternate between tail queries and heartbeats until the client
// goes away. Any write failure tears the connection down immediately;
// the durable log makes reconnection lossless.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no_stream", ErrStreamUnsupported)
		return
	}

	cursor, err := parseCursor(r.URL.Query().Get("lastEventId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	userID := h.scope(r)
	scope := ""
	if userID != "" {
		scope = event.UserScope(userID)
	}

	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	connID := uuid.NewString()
	ctx := r.Context()
	metrics.StreamConnectionOpened()
	defer metrics.StreamConnectionClosed()
	h.logger.Debug(ctx, "stream opened",
		logger.String("conn", connID),
		logger.Int64("cursor", cursor),
		logger.String("scope", scope),
	)

	enc := json.NewEncoder(w)

	// Catch-up: drain every page since the cursor before going live.
	for {
		page, err := h.deps.EventsSince(ctx, cursor, scope, h.limit)
		if err != nil {
			h.logger.Warn(ctx, "stream catch-up query failed", logger.String("conn", connID), logger.Error(err))
			return
		}
		if len(page.Events) > 0 {
			if !h.push(ctx, enc, flusher, connID, page.Events) {
				return
			}
			cursor = page.NextCursor
		}
		if !page.HasMore {
			break
		}
	}

	tail := time.NewTicker(h.tailInterval)
	defer tail.Stop()
	beat := time.NewTicker(h.heartbeat)
	defer beat.Stop()

	// The two tickers are serviced by this one goroutine, so writes to
	// the connection are serialized without a lock.
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug(ctx, "stream closed by client", logger.String("conn", connID))
			return
		case <-tail.C:
			page, err := h.deps.EventsSince(ctx, cursor, scope, h.limit)
			if err != nil {
				h.logger.Warn(ctx, "stream tail query failed", logger.String("conn", connID), logger.Error(err))
				continue
			}
			if len(page.Events) == 0 {
				continue
			}
			if !h.push(ctx, enc, flusher, connID, page.Events) {
				return
			}
			cursor = page.NextCursor
		case <-beat.C:
			hb := frame{Type: "heartbeat", TS: time.Now().UTC().Format(time.RFC3339)}
			if err := enc.Encode(hb); err != nil {
				metrics.RecordStreamWriteError()
				h.logger.Debug(ctx, "heartbeat write failed; closing", logger.String("conn", connID), logger.Error(err))
				return
			}
			flusher.Flush()
			metrics.RecordStreamHeartbeat()
		}
	}
}

// push writes a batch of event frames. Returns false when the
// connection is broken and the handler must stop.
func (h *StreamHandler) push(ctx context.Context, enc *json.Encoder, flusher http.Flusher, connID string, events []event.Event) bool {
	for _, e := range events {
		f := frame{
			ID:      e.ID,
			Type:    string(e.Kind),
			Scope:   e.Scope,
			Payload: e.Payload,
		}
		if err := enc.Encode(f); err != nil {
			metrics.RecordStreamWriteError()
			h.logger.Debug(ctx, "event write failed; closing",
				logger.String("conn", connID), logger.Error(err))
			return false
		}
	}
	flusher.Flush()
	metrics.RecordStreamFrames(len(events))
	return ctx.Err() == nil
}

func parseCursor(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, ErrBadCursor
	}
	return id, nil
}
