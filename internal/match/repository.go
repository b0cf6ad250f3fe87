package match

import (
	"context"

	"github.com/roach88/brawl/internal/combat"
	"github.com/roach88/brawl/internal/game"
)

// Repository persists matches and player states.
//
// LoadMatch and LoadPlayerState return errors matching game.ErrMatchNotFound
// and game.ErrPlayerNotFound for unknown ids. SaveMatch writes the match,
// all its players and the round's combat records in one transaction and
// bumps m.Version; it returns game.ErrStaleVersion when the stored version
// is no longer the one m was loaded at. SavePlayerState writes one player
// under the same version guard and bumps the stored version.
type Repository interface {
	CreateMatch(ctx context.Context, m *game.Match) error
	LoadMatch(ctx context.Context, id string) (*game.Match, error)
	SaveMatch(ctx context.Context, m *game.Match, records []combat.Record) error
	LoadPlayerState(ctx context.Context, matchID string, playerID int64) (*game.Player, error)
	SavePlayerState(ctx context.Context, matchID string, version int64, p *game.Player) error
	ActiveMatches(ctx context.Context) ([]string, error)
}
