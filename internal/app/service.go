// Package service provides the core business service that implements
// the dependencies required by the HTTP API: the event distribution
// contract over the durable log, plus the manual pick write path.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pickem/internal/adapters/repository"
	"github.com/okian/pickem/internal/domain/event"
	"github.com/okian/pickem/internal/domain/lockstate"
	"github.com/okian/pickem/pkg/logger"
	"github.com/okian/pickem/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultEventTTL  = 60 * time.Minute
	defaultPageLimit = 200
)

// Service implements event distribution over the durable log. It is
// the only producer the transports read through; the scheduler and the
// pick-write collaborator both publish via it.
type Service struct {
	mu sync.RWMutex

	store *repository.Store

	// Configuration
	dbPath     string
	eventTTL   time.Duration
	pageLimit  int
	purgeEvery int

	// State
	started       bool
	lastReconcile time.Time

	// Logging
	logger logger.Logger

	now func() time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite database location.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithEventTTL sets the default event expiry.
func WithEventTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.eventTTL = ttl
		}
	}
}

// WithPageLimit caps events returned per page.
func WithPageLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.pageLimit = limit
		}
	}
}

// WithPurgeEvery sets the 1-in-N probabilistic purge trigger.
func WithPurgeEvery(n int) Option {
	return func(s *Service) {
		s.purgeEvery = n
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects an already-open store. Used by tests.
func WithStore(st *repository.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithClock overrides the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:     "pickem.db",
		eventTTL:   defaultEventTTL,
		pageLimit:  defaultPageLimit,
		purgeEvery: 10,
		logger:     nil, // Will be replaced when service starts
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store and readies the service.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.store == nil {
		st, err := repository.Open(s.dbPath, repository.WithPurgeEvery(s.purgeEvery))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = st
	}

	s.started = true
	s.logger.Info(ctx, "event service started",
		logger.String("db", s.dbPath),
		logger.Duration("eventTTL", s.eventTTL),
		logger.Int("pageLimit", s.pageLimit),
	)
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(context.Background(), "store close failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(context.Background(), "event service stopped")
}

// Store exposes the underlying store for the scheduler and collaborators.
func (s *Service) Store() *repository.Store {
	return s.store
}

// Publish appends one event to the log. Scope "" means global. A
// negative ttl (event.DefaultTTL) applies the configured default; any
// non-negative ttl is taken literally, so an explicit zero publishes an
// event that is expired on arrival and never delivered.
func (s *Service) Publish(ctx context.Context, kind event.Kind, payload any, scope string, ttl time.Duration) (event.Event, error) {
	raw, err := event.Marshal(payload)
	if err != nil {
		return event.Event{}, err
	}
	if ttl < 0 {
		ttl = s.eventTTL
	}
	e, err := s.store.AppendEvent(ctx, kind, raw, scope, ttl)
	if err != nil {
		metrics.RecordStoreError("events")
		return event.Event{}, err
	}
	metrics.RecordEventPublished(string(kind))
	s.logger.Debug(ctx, "event published",
		logger.Int64("id", e.ID),
		logger.String("kind", string(kind)),
		logger.String("scope", e.Scope),
	)
	return e, nil
}

// EventsSince returns the page of events after cursor visible to
// userScope, limit-clamped.
func (s *Service) EventsSince(ctx context.Context, cursor int64, userScope string, limit int) (event.Page, error) {
	return s.store.EventsSince(ctx, cursor, userScope, s.clampLimit(limit))
}

// EventsSinceTime returns the page of events created after ts visible
// to userScope, limit-clamped.
func (s *Service) EventsSinceTime(ctx context.Context, ts time.Time, userScope string, limit int) (event.Page, error) {
	return s.store.EventsSinceTime(ctx, ts, userScope, s.clampLimit(limit))
}

// SubmitPick records a manual pick on behalf of the pick-write
// collaborator. The game must still be open; the upsert keeps the
// latest team and a later auto-pick can never replace it. Emits a
// pick-submitted event scoped to the picking user, best effort.
func (s *Service) SubmitPick(ctx context.Context, userID string, gameID int64, team string) error {
	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if !lockstate.PicksOpen(g.GameTime, g.LockOffset, g.IsCompleted, s.now()) {
		return fmt.Errorf("%w: game %d", ErrPicksClosed, gameID)
	}
	if team != g.HomeTeam && team != g.AwayTeam {
		return fmt.Errorf("%w: %s is not playing in game %d", ErrUnknownTeam, team, gameID)
	}
	if err := s.store.UpsertManualPick(ctx, userID, gameID, team); err != nil {
		metrics.RecordStoreError("picks")
		return err
	}

	// State write succeeded; the notification is best effort.
	if _, err := s.Publish(ctx, event.KindPickSubmitted, event.PickSubmitted{
		UserID: userID,
		GameID: gameID,
		Team:   team,
	}, event.UserScope(userID), event.DefaultTTL); err != nil {
		s.logger.Warn(ctx, "pick submitted but event publish failed",
			logger.String("user", userID),
			logger.Int64("game", gameID),
			logger.Error(err),
		)
	}
	return nil
}

// MarkReconciled records when the last reconciliation pass finished.
func (s *Service) MarkReconciled(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReconcile = t
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":   s.started,
		"pageLimit": s.pageLimit,
		"eventTTL":  s.eventTTL.String(),
	}

	if s.started {
		if n, err := s.store.CountEvents(context.Background()); err == nil {
			stats["eventLogSize"] = n
			metrics.UpdateEventLogSize(n)
		}
		if !s.lastReconcile.IsZero() {
			stats["lastReconcile"] = s.lastReconcile.UTC().Format(time.RFC3339)
		}
	}

	return stats
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 || limit > s.pageLimit {
		return s.pageLimit
	}
	return limit
}
