package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/pickem/internal/domain/event"
	"github.com/okian/pickem/pkg/metrics"
)

// AppendEvent inserts one immutable event row and returns it with the
// store-assigned id and timestamps. Safe under concurrent callers; id
// assignment is the AUTOINCREMENT rowid. Roughly one in purgeEvery
// inserts also sweeps expired rows so the log does not need its own
// cleanup scheduler.
func (s *Store) AppendEvent(ctx context.Context, kind event.Kind, payload json.RawMessage, scope string, ttl time.Duration) (event.Event, error) {
	if scope == "" {
		scope = event.ScopeGlobal
	}
	now := time.Now().UTC()
	expires := now.Add(ttl)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (type, scope, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(kind), scope, string(payload), now.UnixMilli(), expires.UnixMilli())
	if err != nil {
		return event.Event{}, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return event.Event{}, fmt.Errorf("event id: %w", err)
	}

	if s.purgeEvery > 0 && rand.Intn(s.purgeEvery) == 0 {
		if n, err := s.PurgeExpired(ctx); err == nil && n > 0 {
			metrics.RecordEventsPurged(n)
		}
	}

	return event.Event{
		ID:        id,
		Kind:      kind,
		Scope:     scope,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: expires,
	}, nil
}

// EventsSince returns unexpired events with id > cursor visible to
// scope, ascending by id, capped at limit. An empty page echoes the
// request cursor back as NextCursor, so a caught-up client that trusts
// the response never rewinds to the start of the log. A caller with no
// user scope sees only global events; a user scope adds that user's
// events. The store matches scope strings mechanically; who may claim
// a scope is the auth collaborator's problem.
func (s *Store) EventsSince(ctx context.Context, cursor int64, userScope string, limit int) (event.Page, error) {
	return s.pageQuery(ctx, `id > ?`, cursor, cursor, userScope, limit)
}

// EventsSinceTime is EventsSince keyed on created_at instead of id, for
// polling clients that only track wall-clock time. The timestamp is
// exclusive, matching the id cursor. An empty page carries NextCursor 0
// since there is no id cursor to echo.
func (s *Store) EventsSinceTime(ctx context.Context, since time.Time, userScope string, limit int) (event.Page, error) {
	return s.pageQuery(ctx, `created_at > ?`, since.UTC().UnixMilli(), 0, userScope, limit)
}

func (s *Store) pageQuery(ctx context.Context, cursorCond string, cursorArg, echoCursor int64, userScope string, limit int) (event.Page, error) {
	if limit <= 0 {
		return event.Page{}, ErrInvalidLimit
	}

	scopes := []any{event.ScopeGlobal}
	scopeCond := `scope = ?`
	if userScope != "" && userScope != event.ScopeGlobal {
		scopes = append(scopes, userScope)
		scopeCond = `scope IN (?, ?)`
	}

	now := time.Now().UTC().UnixMilli()
	args := append([]any{cursorArg}, scopes...)
	args = append(args, now, limit+1)

	// Fetch one extra row to learn whether more pages remain.
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, type, scope, payload, created_at, expires_at
		FROM events
		WHERE %s AND %s AND expires_at > ?
		ORDER BY id ASC
		LIMIT ?
	`, cursorCond, scopeCond), args...)
	if err != nil {
		return event.Page{}, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			e                  event.Event
			kind, payload      string
			createdMS, expires int64
		)
		if err := rows.Scan(&e.ID, &kind, &e.Scope, &payload, &createdMS, &expires); err != nil {
			return event.Page{}, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = event.Kind(kind)
		e.Payload = json.RawMessage(payload)
		e.CreatedAt = time.UnixMilli(createdMS).UTC()
		e.ExpiresAt = time.UnixMilli(expires).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return event.Page{}, fmt.Errorf("iterate events: %w", err)
	}

	page := event.Page{Events: events, NextCursor: echoCursor}
	if len(events) > limit {
		page.Events = events[:limit]
		page.HasMore = true
	}
	if n := len(page.Events); n > 0 {
		page.NextCursor = page.Events[n-1].ID
	}
	if page.Events == nil {
		page.Events = []event.Event{}
	}
	return page, nil
}

// PurgeExpired deletes event rows whose expiry has passed and returns
// the number removed. Event ids are never reused even after purge.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE expires_at <= ?`, time.Now().UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge count: %w", err)
	}
	return n, nil
}
