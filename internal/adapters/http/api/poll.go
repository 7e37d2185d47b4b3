// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/pickem/internal/domain/event"
	"github.com/okian/pickem/pkg/metrics"
)

// Default polling configuration constants.
const (
	defaultPollLimit = 100
)

// PollHandler is the stateless fallback transport: one request, one
// page, same shape as the streaming catch-up.
type PollHandler struct {
	deps  Dependencies
	scope ScopeResolver
	limit int
}

// NewPollHandler creates a new polling handler.
func NewPollHandler(deps Dependencies, scope ScopeResolver, limit int) *PollHandler {
	return &PollHandler{deps: deps, scope: scope, limit: limit}
}

// HandlePoll handles GET /feed/poll requests.
//
// Accepts either lastEventId (id cursor) or since (RFC3339 timestamp);
// lastEventId wins when both are present. With neither, the page starts
// from the beginning of the unexpired log. An optional limit shrinks
// the page below the configured cap, never above it.
func (h *PollHandler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	metrics.RecordPollRequest()

	userID := h.scope(r)
	scope := ""
	if userID != "" {
		scope = event.UserScope(userID)
	}

	q := r.URL.Query()
	limit := h.limit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadLimit)
			return
		}
		if n < limit {
			limit = n
		}
	}
	var (
		page event.Page
		err  error
	)
	switch {
	case q.Get("lastEventId") != "":
		var cursor int64
		cursor, err = parseCursor(q.Get("lastEventId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		page, err = h.deps.EventsSince(r.Context(), cursor, scope, limit)
	case q.Get("since") != "":
		var ts time.Time
		ts, err = time.Parse(time.RFC3339, q.Get("since"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadCursor)
			return
		}
		page, err = h.deps.EventsSinceTime(r.Context(), ts, scope, limit)
	default:
		page, err = h.deps.EventsSince(r.Context(), 0, scope, limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}
