// Package event contains the domain model for the append-only event log.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies what an event describes. The set is closed; transports
// carry the kind verbatim and clients demultiplex on it.
type Kind string

// Event kinds emitted by the core.
const (
	KindScoreUpdate        Kind = "score-update"
	KindGameCompleted      Kind = "game-completed"
	KindGameLockApproach   Kind = "game-lock-approaching"
	KindPickSubmitted      Kind = "pick-submitted"
	KindAutoPickGenerated  Kind = "auto-pick-generated"
	KindLeaderboardUpdated Kind = "leaderboard-updated"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindScoreUpdate, KindGameCompleted, KindGameLockApproach,
		KindPickSubmitted, KindAutoPickGenerated, KindLeaderboardUpdated:
		return true
	}
	return false
}

// DefaultTTL asks a publisher to apply its configured expiry. Any
// non-negative ttl is taken literally, so an explicit zero publishes an
// event that is already expired and never delivered.
const DefaultTTL time.Duration = -1

// ScopeGlobal is the visibility scope every subscriber may read.
const ScopeGlobal = "global"

// UserScope builds the per-user visibility scope string.
func UserScope(userID string) string {
	return "user:" + userID
}

// IsUserScope reports whether s names a per-user scope.
func IsUserScope(s string) bool {
	return strings.HasPrefix(s, "user:")
}

// Event is an immutable fact published once and purged after expiry.
// The id is assigned by the store at insert time and doubles as the
// resumption cursor for streaming and polling clients.
type Event struct {
	ID        int64           `json:"id"`
	Kind      Kind            `json:"type"`
	Scope     string          `json:"scope"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the event is eligible for purge at now.
func (e Event) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Page is the result shape shared by the streaming catch-up query and
// the polling endpoint.
type Page struct {
	Events     []Event `json:"events"`
	NextCursor int64   `json:"lastEventId"`
	HasMore    bool    `json:"hasMore"`
}

// Payload shapes per kind. All payloads marshal to JSON; team and user
// identifiers are opaque strings owned by the outer application.

// ScoreUpdate accompanies KindScoreUpdate.
type ScoreUpdate struct {
	GameID    int64  `json:"game_id"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Status    string `json:"status"`
}

// GameCompleted accompanies KindGameCompleted.
type GameCompleted struct {
	GameID     int64  `json:"game_id"`
	HomeScore  int    `json:"home_score"`
	AwayScore  int    `json:"away_score"`
	WinnerTeam string `json:"winner_team"`
}

// LockApproaching accompanies KindGameLockApproach.
type LockApproaching struct {
	GameID   int64     `json:"game_id"`
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`
	LocksAt  time.Time `json:"locks_at"`
}

// PickSubmitted accompanies KindPickSubmitted. Scoped to the picking
// user so other players do not see picks before lock.
type PickSubmitted struct {
	UserID string `json:"user_id"`
	GameID int64  `json:"game_id"`
	Team   string `json:"team"`
}

// AutoPickGenerated accompanies KindAutoPickGenerated.
type AutoPickGenerated struct {
	UserID string `json:"user_id"`
	GameID int64  `json:"game_id"`
	Team   string `json:"team"`
}

// LeaderboardUpdated accompanies KindLeaderboardUpdated. Emitted at most
// once per reconciliation pass that completed any game.
type LeaderboardUpdated struct {
	CompletedGames []int64 `json:"completed_games"`
}

// Marshal encodes a payload value for publishing.
func Marshal(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return json.RawMessage(b), nil
}
