package store

import (
	"context"
	"fmt"

	"github.com/roach88/brawl/internal/canon"
	"github.com/roach88/brawl/internal/combat"
)

func insertRecord(ctx context.Context, db execer, r *combat.Record) error {
	boardA, err := canon.Marshal(r.BoardA)
	if err != nil {
		return fmt.Errorf("encode record board: %w", err)
	}
	boardB, err := canon.Marshal(r.BoardB)
	if err != nil {
		return fmt.Errorf("encode record board: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO combat_records (match_id, round, player_a, player_b, padding, seed,
			board_a, board_b, winner, damage, actions, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.MatchID, r.Round, r.PlayerA, r.PlayerB, r.Padding, int64(r.Seed),
		string(boardA), string(boardB), r.Winner, r.Damage, r.Actions, r.Digest)
	if err != nil {
		return fmt.Errorf("insert combat record %s/%d/%d: %w", r.MatchID, r.Round, r.PlayerA, err)
	}
	return nil
}

// CombatRecords returns the recorded fights of a match ordered by round,
// then by the first player's id.
func (s *Store) CombatRecords(ctx context.Context, matchID string) ([]combat.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round, player_a, player_b, padding, seed, board_a, board_b,
			winner, damage, actions, digest
		FROM combat_records
		WHERE match_id = ?
		ORDER BY round ASC, player_a ASC
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("query combat records of %s: %w", matchID, err)
	}
	defer rows.Close()

	var out []combat.Record
	for rows.Next() {
		var (
			r      combat.Record
			seed   int64
			boardA string
			boardB string
		)
		if err := rows.Scan(&r.Round, &r.PlayerA, &r.PlayerB, &r.Padding, &seed,
			&boardA, &boardB, &r.Winner, &r.Damage, &r.Actions, &r.Digest); err != nil {
			return nil, fmt.Errorf("scan combat record: %w", err)
		}
		r.MatchID = matchID
		r.Seed = uint64(seed)
		if err := canon.Unmarshal([]byte(boardA), &r.BoardA); err != nil {
			return nil, fmt.Errorf("decode record board: %w", err)
		}
		if err := canon.Unmarshal([]byte(boardB), &r.BoardB); err != nil {
			return nil, fmt.Errorf("decode record board: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
