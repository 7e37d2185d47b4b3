// Package reconcile aligns stored game and pick state with the external
// authoritative score source and emits the resulting events.
package reconcile

import (
	"context"
	"math/rand"
	"time"

	"github.com/okian/pickem/internal/adapters/repository"
	"github.com/okian/pickem/internal/adapters/scores"
	"github.com/okian/pickem/internal/domain/event"
	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/pkg/logger"
)

// Default scheduler configuration constants.
const (
	defaultInterval     = 15 * time.Minute
	defaultLookback     = 6 * time.Hour
	defaultTrailing     = 2 * time.Hour
	defaultLockLead     = 30 * time.Minute
	defaultFetchTimeout = 10 * time.Second
)

// Publisher is how the scheduler emits events. State writes are
// authoritative; publishing is a best-effort notification layer, so
// the scheduler logs and swallows its failures.
type Publisher interface {
	Publish(ctx context.Context, kind event.Kind, payload any, scope string, ttl time.Duration) (event.Event, error)
}

// Marker receives the completion time of each pass, for stats.
type Marker interface {
	MarkReconciled(t time.Time)
}

// ChooseTeam picks a side for an auto-generated pick. The default is a
// uniform coin flip so the synthesized pick carries no bias toward the
// "better looking" team.
type ChooseTeam func(g model.Game) string

// Scheduler runs the periodic reconciliation pass. Overlapping passes
// are tolerated rather than locked out: every write is idempotent.
type Scheduler struct {
	store  *repository.Store
	source scores.Source
	pub    Publisher
	marker Marker

	// Configuration
	interval     time.Duration
	lookback     time.Duration
	trailing     time.Duration
	lockLead     time.Duration
	fetchTimeout time.Duration
	choose       ChooseTeam
	activeHours  *[2]int // nil = always run

	// Logging
	logger logger.Logger

	now func() time.Time
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithInterval sets the pass cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLookback bounds how far back candidate games are selected.
func WithLookback(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithTrailing keeps recently completed games under review.
func WithTrailing(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.trailing = d
		}
	}
}

// WithLockLead sets how far ahead lock-approaching notices fire.
func WithLockLead(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lockLead = d
		}
	}
}

// WithFetchTimeout bounds each external score fetch so one slow call
// cannot starve the pass.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithChooseTeam replaces the auto-pick team choice function.
func WithChooseTeam(f ChooseTeam) Option {
	return func(s *Scheduler) {
		if f != nil {
			s.choose = f
		}
	}
}

// WithActiveHours suppresses passes outside [start, end) local hours.
// A cost optimization only; correctness never depends on it.
func WithActiveHours(start, end int) Option {
	return func(s *Scheduler) {
		s.activeHours = &[2]int{start, end}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Scheduler.
func New(store *repository.Store, source scores.Source, pub Publisher, marker Marker, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:        store,
		source:       source,
		pub:          pub,
		marker:       marker,
		interval:     defaultInterval,
		lookback:     defaultLookback,
		trailing:     defaultTrailing,
		lockLead:     defaultLockLead,
		fetchTimeout: defaultFetchTimeout,
		choose:       coinFlip,
		logger:       nil, // set on first use
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("reconcile")
	}
	return s
}

// Run executes passes on the configured cadence until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "reconcile scheduler started",
		logger.Duration("interval", s.interval),
		logger.Duration("lookback", s.lookback),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "reconcile scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error(ctx, "reconcile pass failed", logger.Error(err))
			}
		}
	}
}

func (s *Scheduler) gated(now time.Time) bool {
	if s.activeHours == nil {
		return false
	}
	h := now.Hour()
	return h < s.activeHours[0] || h >= s.activeHours[1]
}

func coinFlip(g model.Game) string {
	if rand.Intn(2) == 0 {
		return g.HomeTeam
	}
	return g.AwayTeam
}
