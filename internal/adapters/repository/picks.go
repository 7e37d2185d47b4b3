package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/pickem/internal/domain/model"
)

// UpsertManualPick records a user's own pick, replacing any earlier
// choice for the same game (latest team wins). It also demotes an
// auto-generated placeholder to a manual pick: the unique (user, game)
// constraint guarantees a single row either way.
func (s *Store) UpsertManualPick(ctx context.Context, userID string, gameID int64, team string) error {
	now := time.Now().UTC().UnixMilli()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO picks (user_id, game_id, team, auto_generated, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT (user_id, game_id)
		DO UPDATE SET team = excluded.team, auto_generated = 0, updated_at = excluded.updated_at
	`, userID, gameID, team, now, now); err != nil {
		return fmt.Errorf("upsert pick: %w", err)
	}
	return nil
}

// InsertAutoPick synthesizes a pick for a user with none. The conflict
// clause makes it a no-op when any pick already exists, so a manual
// pick is never clobbered and double-running is harmless. Returns true
// only when a row was actually created.
func (s *Store) InsertAutoPick(ctx context.Context, userID string, gameID int64, team string) (bool, error) {
	now := time.Now().UTC().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO picks (user_id, game_id, team, auto_generated, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id, game_id) DO NOTHING
	`, userID, gameID, team, now, now)
	if err != nil {
		return false, fmt.Errorf("insert auto pick: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("auto pick count: %w", err)
	}
	return n > 0, nil
}

// GetPick returns the pick for (user, game).
func (s *Store) GetPick(ctx context.Context, userID string, gameID int64) (model.Pick, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, game_id, team, points, is_correct, auto_generated, created_at, updated_at
		FROM picks WHERE user_id = ? AND game_id = ?
	`, userID, gameID)
	p, err := scanPick(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Pick{}, ErrPickNotFound
	}
	return p, err
}

// PicksForGame returns all picks on one game ordered by user id.
func (s *Store) PicksForGame(ctx context.Context, gameID int64) ([]model.Pick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, game_id, team, points, is_correct, auto_generated, created_at, updated_at
		FROM picks WHERE game_id = ? ORDER BY user_id ASC
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query picks: %w", err)
	}
	defer rows.Close()

	var picks []model.Pick
	for rows.Next() {
		p, err := scanPick(rows)
		if err != nil {
			return nil, err
		}
		picks = append(picks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate picks: %w", err)
	}
	return picks, nil
}

// ScorePicks awards points for every pick on a completed game:
// is_correct = (team == winner), points = 1 or 0. Rewriting with the
// same winner is a fixed point, so accidental re-execution cannot
// change totals. Returns the number of picks touched.
func (s *Store) ScorePicks(ctx context.Context, gameID int64, winnerTeam string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE picks
		SET is_correct = (team = ?), points = (team = ?), updated_at = ?
		WHERE game_id = ?
	`, winnerTeam, winnerTeam, time.Now().UTC().UnixMilli(), gameID)
	if err != nil {
		return 0, fmt.Errorf("score picks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("score count: %w", err)
	}
	return n, nil
}

// UnscoredPickCount reports how many picks on a game still lack an
// award. Non-zero on a completed game means a ScorePicks run was lost
// and must be retried.
func (s *Store) UnscoredPickCount(ctx context.Context, gameID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM picks WHERE game_id = ? AND points IS NULL
	`, gameID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unscored picks: %w", err)
	}
	return n, nil
}

// UsersWithoutPick lists participants who have no pick for a game, in
// stable order. The users table is written by the account collaborator.
func (s *Store) UsersWithoutPick(ctx context.Context, gameID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id FROM users u
		WHERE NOT EXISTS (SELECT 1 FROM picks p WHERE p.user_id = u.id AND p.game_id = ?)
		ORDER BY u.id ASC
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query users without pick: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return ids, nil
}

// AddUser registers a participant. Idempotent; exists for the account
// collaborator and tests.
func (s *Store) AddUser(ctx context.Context, id, displayName string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name
	`, id, displayName); err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}

func scanPick(r rowScanner) (model.Pick, error) {
	var (
		p                model.Pick
		points, correct  sql.NullInt64
		auto             int64
		createdMS, updMS int64
	)
	err := r.Scan(&p.ID, &p.UserID, &p.GameID, &p.Team, &points, &correct, &auto, &createdMS, &updMS)
	if err != nil {
		return model.Pick{}, fmt.Errorf("scan pick: %w", err)
	}
	if points.Valid {
		v := int(points.Int64)
		p.Points = &v
	}
	if correct.Valid {
		v := correct.Int64 != 0
		p.IsCorrect = &v
	}
	p.AutoGenerated = auto != 0
	p.CreatedAt = time.UnixMilli(createdMS).UTC()
	p.UpdatedAt = time.UnixMilli(updMS).UTC()
	return p, nil
}
