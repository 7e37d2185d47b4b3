package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pickem/internal/adapters/scores"
	"github.com/okian/pickem/internal/domain/event"
	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/pkg/logger"
	"github.com/okian/pickem/pkg/metrics"
)

// RunOnce executes one reconciliation pass: select candidates, fetch
// authoritative scores per week, apply changes idempotently, award
// points on the completion transition only, synthesize missing picks
// for locked games, and emit events best-effort. A failure on one game
// skips that game; partial progress is always preserved and the pass
// never panics outward.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reconcile pass panicked: %v", r)
		}
	}()

	now := s.now()
	if s.gated(now) {
		s.logger.Debug(ctx, "pass suppressed outside active hours")
		return nil
	}

	start := time.Now()
	metrics.RecordReconcileRun()
	defer func() {
		metrics.RecordReconcileDuration(float64(time.Since(start).Milliseconds()))
	}()

	candidates, err := s.store.CandidateGames(ctx, now, s.lookback, s.trailing)
	if err != nil {
		metrics.RecordStoreError("games")
		return fmt.Errorf("select candidates: %w", err)
	}

	// Repair first: completed games in the trailing window may carry
	// unscored picks from an interrupted earlier pass. This needs no
	// fetch, so it runs even when the score source is down.
	for _, g := range candidates {
		if g.IsCompleted {
			s.rescoreIfNeeded(ctx, g)
		}
	}

	var completed []int64
	if len(candidates) > 0 {
		completed = s.applyScores(ctx, candidates)
	}

	s.notifyLocks(ctx, now)
	s.autoPick(ctx, now)

	if len(completed) > 0 {
		s.publish(ctx, event.KindLeaderboardUpdated, event.LeaderboardUpdated{
			CompletedGames: completed,
		}, event.ScopeGlobal)
	}

	if s.marker != nil {
		s.marker.MarkReconciled(now)
	}
	s.logger.Info(ctx, "reconcile pass finished",
		logger.Int("candidates", len(candidates)),
		logger.Int("completed", len(completed)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// applyScores fetches each candidate week once and folds the results
// onto stored games. Returns the ids of games that transitioned to
// completed during this pass.
func (s *Scheduler) applyScores(ctx context.Context, candidates []model.Game) []int64 {
	byWeek := make(map[int][]model.Game)
	for _, g := range candidates {
		byWeek[g.SeasonWeek] = append(byWeek[g.SeasonWeek], g)
	}

	var completed []int64
	for week, games := range byWeek {
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		results, err := s.source.FetchWeek(fetchCtx, week)
		cancel()
		if err != nil {
			// Transient: every game in this week is retried next pass.
			metrics.RecordScoreFetchError()
			s.logger.Warn(ctx, "score fetch failed; skipping week",
				logger.Int("week", week), logger.Error(err))
			continue
		}

		indexed := indexResults(results)
		for _, g := range games {
			res, ok := indexed[pairKey(g.HomeTeam, g.AwayTeam)]
			if !ok {
				metrics.RecordReconcileSkip()
				s.logger.Debug(ctx, "no result for game; skipping",
					logger.Int64("game", g.ID), logger.Int("week", week))
				continue
			}
			if id, done := s.applyResult(ctx, g, res); done {
				completed = append(completed, id)
			}
		}
	}
	return completed
}

// applyResult reconciles one game against its fetched result. Returns
// (gameID, true) when the game transitioned to completed here.
func (s *Scheduler) applyResult(ctx context.Context, g model.Game, res scores.Result) (int64, bool) {
	if g.IsCompleted {
		// Completed rows are immutable; a diverging re-fetch is only
		// worth a warning.
		if g.HomeScore != nil && g.AwayScore != nil &&
			(*g.HomeScore != res.HomeScore || *g.AwayScore != res.AwayScore) {
			s.logger.Warn(ctx, "final score diverged after completion; keeping stored result",
				logger.Int64("game", g.ID))
		}
		return 0, false
	}

	switch res.Status {
	case model.StatusFinal:
		winner := res.Winner()
		if winner == "" {
			// Tie or undetermined winner is a logic failure: no points
			// until the source resolves it.
			metrics.RecordReconcileSkip()
			s.logger.Warn(ctx, "final result with no winner; skipping scoring",
				logger.Int64("game", g.ID))
			return 0, false
		}
		transitioned, err := s.store.CompleteGame(ctx, g.ID, res.HomeScore, res.AwayScore, winner)
		if err != nil {
			metrics.RecordStoreError("games")
			s.logger.Error(ctx, "complete game failed", logger.Int64("game", g.ID), logger.Error(err))
			return 0, false
		}
		if !transitioned {
			// Another pass got there first; awarding already happened.
			return 0, false
		}
		metrics.RecordGameCompleted()

		scored, err := s.store.ScorePicks(ctx, g.ID, winner)
		if err != nil {
			// State path failure: stop touching this game, keep the rest
			// of the batch going. The game is already completed, so
			// rescoreIfNeeded retries the award while the game stays in
			// the trailing window; ScorePicks is a fixed point, so
			// nothing is double-counted.
			metrics.RecordStoreError("picks")
			s.logger.Error(ctx, "score picks failed", logger.Int64("game", g.ID), logger.Error(err))
		} else {
			metrics.RecordPicksScored(scored)
		}

		s.publish(ctx, event.KindGameCompleted, event.GameCompleted{
			GameID:     g.ID,
			HomeScore:  res.HomeScore,
			AwayScore:  res.AwayScore,
			WinnerTeam: winner,
		}, event.ScopeGlobal)
		return g.ID, true

	case model.StatusInProgress:
		if scoreUnchanged(g, res) {
			return 0, false
		}
		if err := s.store.UpdateScore(ctx, g.ID, res.HomeScore, res.AwayScore); err != nil {
			metrics.RecordStoreError("games")
			s.logger.Error(ctx, "update score failed", logger.Int64("game", g.ID), logger.Error(err))
			return 0, false
		}
		metrics.RecordScoreUpdated()
		s.publish(ctx, event.KindScoreUpdate, event.ScoreUpdate{
			GameID:    g.ID,
			HomeTeam:  g.HomeTeam,
			AwayTeam:  g.AwayTeam,
			HomeScore: res.HomeScore,
			AwayScore: res.AwayScore,
			Status:    string(res.Status),
		}, event.ScopeGlobal)
		return 0, false

	default:
		// Still scheduled upstream; nothing to reconcile.
		return 0, false
	}
}

// rescoreIfNeeded retries a lost award on an already-completed game.
// CompleteGame and ScorePicks are separate statements, so a crash or
// store error between them leaves completed picks with no points; the
// trailing window keeps such games in the candidate set long enough to
// repair them here.
func (s *Scheduler) rescoreIfNeeded(ctx context.Context, g model.Game) {
	if g.WinnerTeam == nil || *g.WinnerTeam == "" {
		return
	}
	unscored, err := s.store.UnscoredPickCount(ctx, g.ID)
	if err != nil {
		metrics.RecordStoreError("picks")
		s.logger.Warn(ctx, "unscored pick count failed", logger.Int64("game", g.ID), logger.Error(err))
		return
	}
	if unscored == 0 {
		return
	}
	s.logger.Warn(ctx, "completed game has unscored picks; retrying award",
		logger.Int64("game", g.ID), logger.Int64("unscored", unscored))
	scored, err := s.store.ScorePicks(ctx, g.ID, *g.WinnerTeam)
	if err != nil {
		metrics.RecordStoreError("picks")
		s.logger.Error(ctx, "score picks retry failed", logger.Int64("game", g.ID), logger.Error(err))
		return
	}
	metrics.RecordPicksScored(scored)
}

// notifyLocks emits a once-only global notice for games entering their
// lock window.
func (s *Scheduler) notifyLocks(ctx context.Context, now time.Time) {
	locking, err := s.store.LockingGames(ctx, now, s.lockLead)
	if err != nil {
		metrics.RecordStoreError("games")
		s.logger.Warn(ctx, "lock notice query failed", logger.Error(err))
		return
	}
	for _, g := range locking {
		s.publish(ctx, event.KindGameLockApproach, event.LockApproaching{
			GameID:   g.ID,
			HomeTeam: g.HomeTeam,
			AwayTeam: g.AwayTeam,
			LocksAt:  g.LockTime(),
		}, event.ScopeGlobal)
		if err := s.store.MarkLockNotified(ctx, g.ID); err != nil {
			metrics.RecordStoreError("games")
			s.logger.Warn(ctx, "mark lock notified failed", logger.Int64("game", g.ID), logger.Error(err))
		}
	}
}

// autoPick synthesizes picks for users who missed the lock. The insert
// is a no-op when any pick exists, so manual picks are never clobbered
// and re-running is harmless.
func (s *Scheduler) autoPick(ctx context.Context, now time.Time) {
	locked, err := s.store.LockedGames(ctx, now, s.lookback)
	if err != nil {
		metrics.RecordStoreError("games")
		s.logger.Warn(ctx, "locked games query failed", logger.Error(err))
		return
	}
	for _, g := range locked {
		users, err := s.store.UsersWithoutPick(ctx, g.ID)
		if err != nil {
			metrics.RecordStoreError("picks")
			s.logger.Warn(ctx, "users without pick query failed", logger.Int64("game", g.ID), logger.Error(err))
			continue
		}
		for _, userID := range users {
			team := s.choose(g)
			created, err := s.store.InsertAutoPick(ctx, userID, g.ID, team)
			if err != nil {
				metrics.RecordStoreError("picks")
				s.logger.Error(ctx, "auto pick insert failed",
					logger.String("user", userID), logger.Int64("game", g.ID), logger.Error(err))
				continue
			}
			if !created {
				continue
			}
			metrics.RecordAutoPickCreated()
			s.publish(ctx, event.KindAutoPickGenerated, event.AutoPickGenerated{
				UserID: userID,
				GameID: g.ID,
				Team:   team,
			}, event.ScopeGlobal)
		}
	}
}

// publish emits one event, logging and swallowing failures: the state
// writes around it are authoritative and must not be rolled back by a
// notification problem.
func (s *Scheduler) publish(ctx context.Context, kind event.Kind, payload any, scope string) {
	if s.pub == nil {
		return
	}
	if _, err := s.pub.Publish(ctx, kind, payload, scope, event.DefaultTTL); err != nil {
		s.logger.Warn(ctx, "event publish failed",
			logger.String("kind", string(kind)), logger.Error(err))
	}
}

func indexResults(results []scores.Result) map[string]scores.Result {
	m := make(map[string]scores.Result, len(results))
	for _, r := range results {
		m[pairKey(r.HomeTeam, r.AwayTeam)] = r
	}
	return m
}

func pairKey(home, away string) string {
	return home + "|" + away
}

func scoreUnchanged(g model.Game, res scores.Result) bool {
	return g.HomeScore != nil && g.AwayScore != nil &&
		*g.HomeScore == res.HomeScore && *g.AwayScore == res.AwayScore
}
