// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/pickem/internal/domain/lockstate"
)

// Game is a single scheduled matchup whose lifecycle the core reasons
// about. Home/away scores and the winner stay nil until known; once
// IsCompleted is set the result fields are immutable.
type Game struct {
	ID           int64
	HomeTeam     string
	AwayTeam     string
	GameTime     time.Time
	LockOffset   time.Duration // minutes before kickoff; negative = soft lock
	HomeScore    *int
	AwayScore    *int
	IsCompleted  bool
	WinnerTeam   *string
	SeasonWeek   int
	LockNotified bool
	UpdatedAt    time.Time
}

// State derives the game's lifecycle state at now.
func (g Game) State(now time.Time) lockstate.State {
	return lockstate.Derive(g.GameTime, g.LockOffset, g.IsCompleted, now)
}

// LockTime returns the instant picks close for this game.
func (g Game) LockTime() time.Time {
	return lockstate.LockTime(g.GameTime, g.LockOffset)
}

// Pick is one user's prediction for one game. At most one pick exists
// per (user, game); a manual pick is never replaced by an auto one.
type Pick struct {
	ID            int64
	UserID        string
	GameID        int64
	Team          string
	Points        *int  // nil until scored
	IsCorrect     *bool // nil until scored
	AutoGenerated bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Scored reports whether points have been awarded for this pick.
func (p Pick) Scored() bool {
	return p.Points != nil && p.IsCorrect != nil
}

// GameStatus mirrors the external source's per-game status field.
type GameStatus string

// External statuses the score source reports.
const (
	StatusScheduled  GameStatus = "scheduled"
	StatusInProgress GameStatus = "in_progress"
	StatusFinal      GameStatus = "final"
)
