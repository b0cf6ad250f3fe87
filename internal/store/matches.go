package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/brawl/internal/combat"
	"github.com/roach88/brawl/internal/game"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateMatch inserts a new match and its players at version 1.
func (s *Store) CreateMatch(ctx context.Context, m *game.Match) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create match: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO matches (id, seed, phase, round, due_at, version, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
	`, m.ID, int64(m.Seed), string(m.Turn.Phase()), m.Turn.Round(), dueMillis(m.Turn), m.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert match %s: %w", m.ID, err)
	}

	for _, p := range m.Players {
		if err := upsertPlayer(ctx, tx, m.ID, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create match %s: %w", m.ID, err)
	}
	m.Version = 1
	return nil
}

// LoadMatch reads a match and all of its players ordered by id.
func (s *Store) LoadMatch(ctx context.Context, id string) (*game.Match, error) {
	var (
		seed      int64
		phase     string
		round     int
		dueAt     sql.NullInt64
		version   int64
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT seed, phase, round, due_at, version, created_at
		FROM matches WHERE id = ?
	`, id).Scan(&seed, &phase, &round, &dueAt, &version, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &game.Error{Code: game.CodeMatchNotFound, Message: "match not found", MatchID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("query match %s: %w", id, err)
	}

	var due time.Time
	if dueAt.Valid {
		due = time.UnixMilli(dueAt.Int64).UTC()
	}
	turn, err := game.NewTurn(game.Phase(phase), round, due)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", id, err)
	}

	players, err := s.loadPlayers(ctx, id)
	if err != nil {
		return nil, err
	}

	return &game.Match{
		ID:        id,
		Seed:      uint64(seed),
		Players:   players,
		Turn:      turn,
		CreatedAt: time.UnixMilli(createdAt).UTC(),
		Version:   version,
	}, nil
}

// SaveMatch writes the match row, every player and the given combat
// records in one transaction. The match row is only updated when its
// stored version still equals m.Version.
func (s *Store) SaveMatch(ctx context.Context, m *game.Match, records []combat.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save match: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE matches SET phase = ?, round = ?, due_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, string(m.Turn.Phase()), m.Turn.Round(), dueMillis(m.Turn), m.ID, m.Version)
	if err := checkVersioned(ctx, tx, res, err, m.ID, m.Version); err != nil {
		return err
	}

	for _, p := range m.Players {
		if err := upsertPlayer(ctx, tx, m.ID, p); err != nil {
			return err
		}
	}
	for i := range records {
		if err := insertRecord(ctx, tx, &records[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save match %s: %w", m.ID, err)
	}
	m.Version++
	return nil
}

// checkVersioned interprets the result of a version-guarded UPDATE of a
// match row. No affected row means the match is gone or moved past
// version.
func checkVersioned(ctx context.Context, tx *sql.Tx, res sql.Result, err error, id string, version int64) error {
	if err != nil {
		return fmt.Errorf("update match %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &game.Error{Code: game.CodeMatchNotFound, Message: "match not found", MatchID: id}
	}
	if err != nil {
		return fmt.Errorf("check match %s: %w", id, err)
	}
	return fmt.Errorf("save match %s at version %d: %w", id, version, game.ErrStaleVersion)
}

// ActiveMatches returns the ids of matches not in GameOver, sorted.
func (s *Store) ActiveMatches(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM matches WHERE phase != ? ORDER BY id ASC
	`, string(game.PhaseGameOver))
	if err != nil {
		return nil, fmt.Errorf("query active matches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan match id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MatchSummary is one row of ListMatches.
type MatchSummary struct {
	ID        string
	Phase     game.Phase
	Round     int
	Players   int
	CreatedAt time.Time
}

// ListMatches returns every stored match, newest first.
func (s *Store) ListMatches(ctx context.Context) ([]MatchSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.phase, m.round, m.created_at, COUNT(p.id)
		FROM matches m LEFT JOIN players p ON p.match_id = m.id
		GROUP BY m.id
		ORDER BY m.created_at DESC, m.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchSummary
	for rows.Next() {
		var (
			ms        MatchSummary
			phase     string
			createdAt int64
		)
		if err := rows.Scan(&ms.ID, &phase, &ms.Round, &createdAt, &ms.Players); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		ms.Phase = game.Phase(phase)
		ms.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, ms)
	}
	return out, rows.Err()
}

func dueMillis(t game.Turn) sql.NullInt64 {
	due := t.Due()
	if due.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: due.UnixMilli(), Valid: true}
}
