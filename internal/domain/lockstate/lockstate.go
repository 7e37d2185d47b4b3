// Package lockstate derives a game's lifecycle state from wall-clock
// time. It is the single source of truth for both the reconciliation
// scheduler (auto-pick eligibility) and pick-submission gating, so the
// same arithmetic runs on both sides.
package lockstate

import "time"

// State is the lifecycle position of a game at a given instant.
type State string

const (
	// Upcoming means picks are still open.
	Upcoming State = "upcoming"
	// Locked means the lock offset has passed but kickoff has not.
	Locked State = "locked"
	// InProgress means kickoff has passed and no final result is stored.
	InProgress State = "inProgress"
	// Final means the game is completed; sticky regardless of clock.
	Final State = "final"
)

// Derive returns the lifecycle state of a game at now.
//
// Completion always wins: a completed game is Final even if now is
// before kickoff (a postponed game confirmed early stays Final). A
// negative lockOffset is legal and moves the lock after kickoff (a soft
// lock); callers must not reject it.
func Derive(gameTime time.Time, lockOffset time.Duration, isCompleted bool, now time.Time) State {
	switch {
	case isCompleted:
		return Final
	case !now.Before(gameTime):
		return InProgress
	case !now.Before(gameTime.Add(-lockOffset)):
		return Locked
	default:
		return Upcoming
	}
}

// LockTime returns the instant picks close for a game.
func LockTime(gameTime time.Time, lockOffset time.Duration) time.Time {
	return gameTime.Add(-lockOffset)
}

// PicksOpen reports whether a pick may still be submitted at now.
func PicksOpen(gameTime time.Time, lockOffset time.Duration, isCompleted bool, now time.Time) bool {
	return Derive(gameTime, lockOffset, isCompleted, now) == Upcoming
}
