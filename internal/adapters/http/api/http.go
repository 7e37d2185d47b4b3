// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/pickem/internal/domain/event"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// EventsSince returns events after an id cursor visible to userScope.
	EventsSince(ctx context.Context, cursor int64, userScope string, limit int) (event.Page, error)

	// EventsSinceTime returns events created after ts visible to userScope.
	EventsSinceTime(ctx context.Context, ts time.Time, userScope string, limit int) (event.Page, error)
}

// Reconciler triggers an immediate reconciliation pass. Implemented by
// the scheduler; the admin endpoint exposes it for operators.
type Reconciler interface {
	RunOnce(ctx context.Context) error
}

// ScopeResolver extracts the optional authenticated user id from a
// request. Session handling is the auth collaborator's job; the default
// resolver trusts the X-Pickem-User header as given.
type ScopeResolver func(r *http.Request) string

// HeaderScopeResolver resolves the user id from the X-Pickem-User header.
func HeaderScopeResolver(r *http.Request) string {
	return r.Header.Get("X-Pickem-User")
}

// Server wires HTTP routes for the real-time core.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	streamHandler *StreamHandler
	pollHandler   *PollHandler
	adminHandler  *AdminHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, rec Reconciler, opts ...ServerOption) *Server {
	cfg := serverConfig{
		scope:        HeaderScopeResolver,
		tailInterval: defaultTailInterval,
		heartbeat:    defaultHeartbeatInterval,
		streamLimit:  defaultStreamLimit,
		pollLimit:    defaultPollLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		streamHandler: NewStreamHandler(deps, cfg.scope, cfg.tailInterval, cfg.heartbeat, cfg.streamLimit),
		pollHandler:   NewPollHandler(deps, cfg.scope, cfg.pollLimit),
		adminHandler:  NewAdminHandler(rec),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/feed/stream", s.streamHandler.HandleStream)
	mux.HandleFunc("/feed/poll", MetricsMiddleware(s.pollHandler.HandlePoll, "poll"))
	mux.HandleFunc("/admin/reconcile", MetricsMiddleware(s.adminHandler.HandleReconcile, "reconcile"))
}

// serverConfig collects tunables shared by the transports.
type serverConfig struct {
	scope        ScopeResolver
	tailInterval time.Duration
	heartbeat    time.Duration
	streamLimit  int
	pollLimit    int
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*serverConfig)

// WithScopeResolver replaces the default header-based scope resolver.
func WithScopeResolver(f ScopeResolver) ServerOption {
	return func(c *serverConfig) {
		if f != nil {
			c.scope = f
		}
	}
}

// WithTailInterval sets the streaming tail query interval.
func WithTailInterval(d time.Duration) ServerOption {
	return func(c *serverConfig) {
		if d > 0 {
			c.tailInterval = d
		}
	}
}

// WithHeartbeatInterval sets the streaming heartbeat interval.
func WithHeartbeatInterval(d time.Duration) ServerOption {
	return func(c *serverConfig) {
		if d > 0 {
			c.heartbeat = d
		}
	}
}

// WithPageLimits sets the per-query caps for stream and poll pages.
func WithPageLimits(stream, poll int) ServerOption {
	return func(c *serverConfig) {
		if stream > 0 {
			c.streamLimit = stream
		}
		if poll > 0 {
			c.pollLimit = poll
		}
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
