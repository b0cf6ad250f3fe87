package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/brawl/internal/canon"
	"github.com/roach88/brawl/internal/game"
)

const playerColumns = `id, account_id, name, avatar, avatar_choices, board, shop,
	health, money, experience, placement, next_instance`

// LoadPlayerState reads one player of a match.
func (s *Store) LoadPlayerState(ctx context.Context, matchID string, playerID int64) (*game.Player, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+playerColumns+`
		FROM players WHERE match_id = ? AND id = ?
	`, matchID, playerID)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &game.Error{Code: game.CodePlayerNotFound, Message: "player not found", MatchID: matchID, PlayerID: playerID}
	}
	if err != nil {
		return nil, fmt.Errorf("load player %d of %s: %w", playerID, matchID, err)
	}
	return p, nil
}

// SavePlayerState overwrites one existing player of a match and bumps the
// match version, in one transaction. version is the match version the
// player was read at; a moved version fails with game.ErrStaleVersion
// and writes nothing.
func (s *Store) SavePlayerState(ctx context.Context, matchID string, version int64, p *game.Player) error {
	cols, err := encodePlayer(p)
	if err != nil {
		return fmt.Errorf("encode player %d: %w", p.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save player: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE matches SET version = version + 1
		WHERE id = ? AND version = ?
	`, matchID, version)
	if err := checkVersioned(ctx, tx, res, err, matchID, version); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE players SET account_id = ?, name = ?, avatar = ?, avatar_choices = ?,
			board = ?, shop = ?, health = ?, money = ?, experience = ?,
			placement = ?, next_instance = ?
		WHERE match_id = ? AND id = ?
	`, cols.accountID, p.Name, p.Avatar, cols.avatarChoices,
		cols.board, cols.shop, p.Health, p.Money, p.Experience,
		cols.placement, p.NextInstance, matchID, p.ID)
	if err != nil {
		return fmt.Errorf("update player %d of %s: %w", p.ID, matchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update player %d of %s: %w", p.ID, matchID, err)
	}
	if n == 0 {
		return &game.Error{Code: game.CodePlayerNotFound, Message: "player not found", MatchID: matchID, PlayerID: p.ID}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save player %d of %s: %w", p.ID, matchID, err)
	}
	return nil
}

func (s *Store) loadPlayers(ctx context.Context, matchID string) ([]*game.Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+playerColumns+`
		FROM players WHERE match_id = ?
		ORDER BY id ASC
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("query players of %s: %w", matchID, err)
	}
	defer rows.Close()

	var players []*game.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player of %s: %w", matchID, err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func upsertPlayer(ctx context.Context, db execer, matchID string, p *game.Player) error {
	cols, err := encodePlayer(p)
	if err != nil {
		return fmt.Errorf("encode player %d: %w", p.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO players (match_id, `+playerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id, id) DO UPDATE SET
			account_id = excluded.account_id,
			name = excluded.name,
			avatar = excluded.avatar,
			avatar_choices = excluded.avatar_choices,
			board = excluded.board,
			shop = excluded.shop,
			health = excluded.health,
			money = excluded.money,
			experience = excluded.experience,
			placement = excluded.placement,
			next_instance = excluded.next_instance
	`, matchID, p.ID, cols.accountID, p.Name, p.Avatar, cols.avatarChoices,
		cols.board, cols.shop, p.Health, p.Money, p.Experience,
		cols.placement, p.NextInstance)
	if err != nil {
		return fmt.Errorf("upsert player %d of %s: %w", p.ID, matchID, err)
	}
	return nil
}

// playerCols holds the encoded forms of a player's non-scalar fields.
type playerCols struct {
	accountID     sql.NullInt64
	placement     sql.NullInt64
	avatarChoices string
	board         string
	shop          string
}

func encodePlayer(p *game.Player) (playerCols, error) {
	var cols playerCols
	if p.AccountID != nil {
		cols.accountID = sql.NullInt64{Int64: *p.AccountID, Valid: true}
	}
	if p.Placement != nil {
		cols.placement = sql.NullInt64{Int64: int64(*p.Placement), Valid: true}
	}

	choices := p.AvatarChoices
	if choices == nil {
		choices = []string{}
	}
	data, err := canon.Marshal(choices)
	if err != nil {
		return cols, err
	}
	cols.avatarChoices = string(data)

	if data, err = canon.Marshal(p.Board); err != nil {
		return cols, err
	}
	cols.board = string(data)

	if data, err = canon.Marshal(p.Shop); err != nil {
		return cols, err
	}
	cols.shop = string(data)
	return cols, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*game.Player, error) {
	var (
		p         game.Player
		accountID sql.NullInt64
		placement sql.NullInt64
		choices   string
		board     string
		shop      string
	)
	err := row.Scan(&p.ID, &accountID, &p.Name, &p.Avatar, &choices, &board, &shop,
		&p.Health, &p.Money, &p.Experience, &placement, &p.NextInstance)
	if err != nil {
		return nil, err
	}
	if accountID.Valid {
		acc := accountID.Int64
		p.AccountID = &acc
	}
	if placement.Valid {
		p.SetPlacement(int(placement.Int64))
	}
	if err := canon.Unmarshal([]byte(choices), &p.AvatarChoices); err != nil {
		return nil, fmt.Errorf("decode avatar choices: %w", err)
	}
	if len(p.AvatarChoices) == 0 {
		p.AvatarChoices = nil
	}
	if err := canon.Unmarshal([]byte(board), &p.Board); err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	if err := canon.Unmarshal([]byte(shop), &p.Shop); err != nil {
		return nil, fmt.Errorf("decode shop: %w", err)
	}
	return &p, nil
}
