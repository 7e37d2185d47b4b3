package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/pickem/internal/domain/lockstate"
	"github.com/okian/pickem/internal/domain/model"
)

func createGame(t *testing.T, s *Store, kickoff time.Time, offset time.Duration, week int) int64 {
	t.Helper()
	id, err := s.CreateGame(context.Background(), model.Game{
		HomeTeam:   "ravens",
		AwayTeam:   "bills",
		GameTime:   kickoff,
		LockOffset: offset,
		SeasonWeek: week,
	})
	require.NoError(t, err)
	return id
}

func TestGameRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kickoff := time.Now().UTC().Add(3 * time.Hour).Truncate(time.Millisecond)

	id := createGame(t, s, kickoff, 90*time.Minute, 3)

	g, err := s.GetGame(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ravens", g.HomeTeam)
	assert.Equal(t, "bills", g.AwayTeam)
	assert.True(t, g.GameTime.Equal(kickoff))
	assert.Equal(t, 90*time.Minute, g.LockOffset)
	assert.Equal(t, 3, g.SeasonWeek)
	assert.False(t, g.IsCompleted)
	assert.Nil(t, g.HomeScore)
	assert.Nil(t, g.WinnerTeam)
	assert.Equal(t, lockstate.Upcoming, g.State(time.Now()))
}

func TestGetGameNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetGame(context.Background(), 404)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestUpdateScoreGuardsCompletedGames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createGame(t, s, time.Now().UTC().Add(-time.Hour), time.Hour, 1)

	require.NoError(t, s.UpdateScore(ctx, id, 7, 3))
	g, err := s.GetGame(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, g.HomeScore)
	assert.Equal(t, 7, *g.HomeScore)
	assert.Equal(t, 3, *g.AwayScore)

	transitioned, err := s.CompleteGame(ctx, id, 24, 17, "ravens")
	require.NoError(t, err)
	assert.True(t, transitioned)

	// Completed games are immutable.
	require.NoError(t, s.UpdateScore(ctx, id, 99, 99))
	g, err = s.GetGame(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 24, *g.HomeScore)
	assert.Equal(t, 17, *g.AwayScore)
	require.NotNil(t, g.WinnerTeam)
	assert.Equal(t, "ravens", *g.WinnerTeam)
}

func TestCompleteGameTransitionsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createGame(t, s, time.Now().UTC().Add(-3*time.Hour), time.Hour, 1)

	first, err := s.CompleteGame(ctx, id, 24, 17, "ravens")
	require.NoError(t, err)
	second, err := s.CompleteGame(ctx, id, 24, 17, "ravens")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second, "replayed completion must not look like a transition")
}

func TestCandidateGames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inWindow := createGame(t, s, now.Add(-2*time.Hour), time.Hour, 1)
	tooOld := createGame(t, s, now.Add(-48*time.Hour), time.Hour, 1)
	future := createGame(t, s, now.Add(4*time.Hour), time.Hour, 1)
	trailing := createGame(t, s, now.Add(-5*time.Hour), time.Hour, 1)
	_, err := s.CompleteGame(ctx, trailing, 10, 7, "ravens")
	require.NoError(t, err)

	games, err := s.CandidateGames(ctx, now, 6*time.Hour, 2*time.Hour)
	require.NoError(t, err)

	ids := make(map[int64]bool, len(games))
	for _, g := range games {
		ids[g.ID] = true
	}
	assert.True(t, ids[inWindow], "incomplete game inside lookback")
	assert.True(t, ids[trailing], "recently completed game stays under review")
	assert.False(t, ids[tooOld], "outside lookback")
	assert.False(t, ids[future], "kickoff not reached")
}

func TestLockingGamesNotifyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	soon := createGame(t, s, now.Add(80*time.Minute), time.Hour, 1) // locks in 20m
	far := createGame(t, s, now.Add(6*time.Hour), time.Hour, 1)

	games, err := s.LockingGames(ctx, now, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, soon, games[0].ID)
	_ = far

	require.NoError(t, s.MarkLockNotified(ctx, soon))

	games, err = s.LockingGames(ctx, now, 30*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, games, "notified games drop out")
}

func TestLockedGames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	locked := createGame(t, s, now.Add(30*time.Minute), time.Hour, 1) // lock passed 30m ago
	open := createGame(t, s, now.Add(3*time.Hour), time.Hour, 1)

	games, err := s.LockedGames(ctx, now, 6*time.Hour)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, locked, games[0].ID)
	_ = open
}

func TestLockedGamesSoftLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Negative offset: lock lands 15 minutes after kickoff.
	soft := createGame(t, s, now.Add(-5*time.Minute), -15*time.Minute, 1)

	games, err := s.LockedGames(ctx, now, 6*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, games, "soft lock still open 5 minutes into the game")

	games, err = s.LockedGames(ctx, now.Add(20*time.Minute), 6*time.Hour)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, soft, games[0].ID)
}
