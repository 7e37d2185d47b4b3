package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/pickem/internal/domain/model"
)

const gameColumns = `id, home_team, away_team, game_time, lock_offset_minutes,
	home_score, away_score, is_completed, winner_team, season_week,
	lock_notified, updated_at`

// CreateGame inserts a scheduled game and returns its id. Schedule
// loading is an external collaborator's job; this exists for it (and
// for tests).
func (s *Store) CreateGame(ctx context.Context, g model.Game) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO games (home_team, away_team, game_time, lock_offset_minutes, season_week, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, g.HomeTeam, g.AwayTeam, g.GameTime.UTC().UnixMilli(),
		int64(g.LockOffset/time.Minute), g.SeasonWeek, time.Now().UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("game id: %w", err)
	}
	return id, nil
}

// GetGame returns one game by id.
func (s *Store) GetGame(ctx context.Context, id int64) (model.Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Game{}, ErrGameNotFound
	}
	return g, err
}

// CandidateGames returns games the reconciliation pass should look at:
// incomplete games with kickoff inside the lookback window (may be in
// progress, or about to lock), plus games completed within the trailing
// window (to confirm finals have not changed). Ordered by kickoff.
func (s *Store) CandidateGames(ctx context.Context, now time.Time, lookback, trailing time.Duration) ([]model.Game, error) {
	nowMS := now.UTC().UnixMilli()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE (is_completed = 0 AND game_time BETWEEN ? AND ?)
		   OR (is_completed = 1 AND updated_at >= ?)
		ORDER BY game_time ASC, id ASC
	`, now.Add(-lookback).UTC().UnixMilli(), nowMS, now.Add(-trailing).UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()
	return collectGames(rows)
}

// LockingGames returns incomplete games whose lock time falls within
// (now, now+lead] and that have not yet produced a lock-approaching
// notice. The notified flag keeps the notice once-only.
func (s *Store) LockingGames(ctx context.Context, now time.Time, lead time.Duration) ([]model.Game, error) {
	// lock_time = game_time - lock_offset_minutes
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE is_completed = 0 AND lock_notified = 0
		  AND (game_time - lock_offset_minutes * 60000) <= ?
		ORDER BY game_time ASC, id ASC
	`, now.Add(lead).UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query locking games: %w", err)
	}
	defer rows.Close()
	return collectGames(rows)
}

// LockedGames returns incomplete games whose lock time has passed as of
// now. These are the games eligible for auto-pick synthesis.
func (s *Store) LockedGames(ctx context.Context, now time.Time, lookback time.Duration) ([]model.Game, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE is_completed = 0
		  AND (game_time - lock_offset_minutes * 60000) <= ?
		  AND game_time >= ?
		ORDER BY game_time ASC, id ASC
	`, now.UTC().UnixMilli(), now.Add(-lookback).UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query locked games: %w", err)
	}
	defer rows.Close()
	return collectGames(rows)
}

// MarkLockNotified flips the once-only lock-approaching flag.
func (s *Store) MarkLockNotified(ctx context.Context, gameID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE games SET lock_notified = 1 WHERE id = ?`, gameID); err != nil {
		return fmt.Errorf("mark lock notified: %w", err)
	}
	return nil
}

// UpdateScore writes an in-progress score onto an incomplete game.
// Completed games are immutable; the guard is in the WHERE clause.
func (s *Store) UpdateScore(ctx context.Context, gameID int64, home, away int) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE games SET home_score = ?, away_score = ?, updated_at = ?
		WHERE id = ? AND is_completed = 0
	`, home, away, time.Now().UTC().UnixMilli(), gameID); err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	return nil
}

// CompleteGame records the final result and flips the completion flag
// in one write. It returns true only on the transition from incomplete
// to complete: repeated calls for an already-final game report false,
// which is what keeps point awarding at-most-once.
func (s *Store) CompleteGame(ctx context.Context, gameID int64, home, away int, winner string) (bool, error) {
	win := sql.NullString{String: winner, Valid: winner != ""}
	res, err := s.db.ExecContext(ctx, `
		UPDATE games
		SET home_score = ?, away_score = ?, winner_team = ?, is_completed = 1, updated_at = ?
		WHERE id = ? AND is_completed = 0
	`, home, away, win, time.Now().UTC().UnixMilli(), gameID)
	if err != nil {
		return false, fmt.Errorf("complete game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete game count: %w", err)
	}
	return n > 0, nil
}

func collectGames(rows *sql.Rows) ([]model.Game, error) {
	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(r rowScanner) (model.Game, error) {
	var (
		g                    model.Game
		gameTimeMS, updMS    int64
		lockOffsetMin        int64
		homeScore, awayScore sql.NullInt64
		winner               sql.NullString
		completed, noted     int64
	)
	err := r.Scan(&g.ID, &g.HomeTeam, &g.AwayTeam, &gameTimeMS, &lockOffsetMin,
		&homeScore, &awayScore, &completed, &winner, &g.SeasonWeek, &noted, &updMS)
	if err != nil {
		return model.Game{}, fmt.Errorf("scan game: %w", err)
	}
	g.GameTime = time.UnixMilli(gameTimeMS).UTC()
	g.LockOffset = time.Duration(lockOffsetMin) * time.Minute
	if homeScore.Valid {
		v := int(homeScore.Int64)
		g.HomeScore = &v
	}
	if awayScore.Valid {
		v := int(awayScore.Int64)
		g.AwayScore = &v
	}
	g.IsCompleted = completed != 0
	if winner.Valid {
		g.WinnerTeam = &winner.String
	}
	g.LockNotified = noted != 0
	g.UpdatedAt = time.UnixMilli(updMS).UTC()
	return g, nil
}
