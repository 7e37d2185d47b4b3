package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/pickem/internal/domain/event"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 3; i++ {
		e, err := s.AppendEvent(ctx, event.KindScoreUpdate, json.RawMessage(`{}`), "", time.Hour)
		require.NoError(t, err)
		assert.Greater(t, e.ID, last)
		assert.Equal(t, event.ScopeGlobal, e.Scope, "empty scope defaults to global")
		last = e.ID
	}
}

func TestEventsSinceCursorIsExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		e, err := s.AppendEvent(ctx, event.KindScoreUpdate, json.RawMessage(`{}`), event.ScopeGlobal, time.Hour)
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	page, err := s.EventsSince(ctx, 0, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 3)
	assert.Equal(t, ids[2], page.NextCursor)
	assert.False(t, page.HasMore)

	// The cursor itself is never returned again.
	page, err = s.EventsSince(ctx, ids[1], "", 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, ids[2], page.Events[0].ID)

	// Caught up: empty slice, not nil, and the request cursor is echoed
	// back so a client trusting the response never rewinds to the start
	// of the log.
	page, err = s.EventsSince(ctx, ids[2], "", 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Events)
	assert.Empty(t, page.Events)
	assert.Equal(t, ids[2], page.NextCursor)

	// Same for a cursor past the end of the log.
	page, err = s.EventsSince(ctx, ids[2]+40, "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Events)
	assert.Equal(t, ids[2]+40, page.NextCursor)
}

func TestScopeVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AppendEvent(ctx, event.KindScoreUpdate, json.RawMessage(`{}`), event.ScopeGlobal, time.Hour)
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, event.KindPickSubmitted, json.RawMessage(`{}`), event.UserScope("alice"), time.Hour)
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, event.KindPickSubmitted, json.RawMessage(`{}`), event.UserScope("bob"), time.Hour)
	require.NoError(t, err)

	// No user scope: global only.
	page, err := s.EventsSince(ctx, 0, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, event.ScopeGlobal, page.Events[0].Scope)

	// Alice sees global plus her own, never bob's.
	page, err = s.EventsSince(ctx, 0, event.UserScope("alice"), 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	for _, e := range page.Events {
		assert.NotEqual(t, event.UserScope("bob"), e.Scope)
	}
}

func TestExpiredEventsAreInvisibleAndPurgeable(t *testing.T) {
	// Opportunistic sweeps off so the explicit purge owns the count.
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithPurgeEvery(0))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	dead, err := s.AppendEvent(ctx, event.KindScoreUpdate, json.RawMessage(`{}`), event.ScopeGlobal, -time.Second)
	require.NoError(t, err)
	live, err := s.AppendEvent(ctx, event.KindScoreUpdate, json.RawMessage(`{}`), event.ScopeGlobal, time.Hour)
	require.NoError(t, err)

	page, err := s.EventsSince(ctx, 0, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, live.ID, page.Events[0].ID)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Ids are never reused after a purge.
	next, err := s.AppendEvent(ctx, event.KindScoreUpdate, json.RawMessage(`{}`), event.ScopeGlobal, time.Hour)
	require.NoError(t, err)
	assert.Greater(t, next.ID, dead.ID)
	assert.Greater(t, next.ID, live.ID)
}

func TestPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.AppendEvent(ctx, event.KindScoreUpdate, json.RawMessage(`{}`), event.ScopeGlobal, time.Hour)
		require.NoError(t, err)
	}

	var total int
	cursor := int64(0)
	pages := 0
	for {
		page, err := s.EventsSince(ctx, cursor, "", 2)
		require.NoError(t, err)
		total += len(page.Events)
		pages++
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, 3, pages)
}

func TestEventsSinceTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AppendEvent(ctx, event.KindScoreUpdate, json.RawMessage(`{}`), event.ScopeGlobal, time.Hour)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.AppendEvent(ctx, event.KindScoreUpdate, json.RawMessage(`{}`), event.ScopeGlobal, time.Hour)
	require.NoError(t, err)

	// The timestamp is exclusive, like the id cursor.
	page, err := s.EventsSinceTime(ctx, first.CreatedAt, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, second.ID, page.Events[0].ID)
	assert.Equal(t, second.ID, page.NextCursor, "time query still hands back an id cursor")
}

func TestInvalidLimitRejected(t *testing.T) {
	s := newTestStore(t)

	_, err := s.EventsSince(context.Background(), 0, "", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}
