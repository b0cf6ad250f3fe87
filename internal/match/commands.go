package match

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/notify"
	"github.com/roach88/brawl/internal/shop"
)

// command mutates a private copy of the acting player.
type command func(p *game.Player, r *room) error

// maxCommandAttempts bounds how often a command is re-run against a
// reloaded match after losing a version race.
const maxCommandAttempts = 3

// act runs cmd for the account's seat under the room lock, persists the
// player and sends them their new private view.
//
// The save is guarded by the match version. When another process wrote
// the match first, the room is reloaded and cmd runs again on the fresh
// state.
func (s *Service) act(ctx context.Context, matchID string, accountID int64, cmd command) (PlayerView, error) {
	r, err := s.room(ctx, matchID)
	if err != nil {
		return PlayerView{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 1; ; attempt++ {
		view, err := s.tryAct(ctx, r, accountID, cmd)
		if !errors.Is(err, game.ErrStaleVersion) {
			return view, err
		}
		if attempt == maxCommandAttempts {
			return PlayerView{}, game.Internal(fmt.Errorf("save player: %w", err), matchID)
		}
		s.logger.Info("match changed elsewhere, reloading", "match_id", matchID, "attempt", attempt)
		if err := s.reload(ctx, r); err != nil {
			return PlayerView{}, err
		}
	}
}

// tryAct is one attempt of act; r.mu must be held. A lost version race is
// returned unwrapped as game.ErrStaleVersion.
func (s *Service) tryAct(ctx context.Context, r *room, accountID int64, cmd command) (PlayerView, error) {
	matchID := r.state.ID
	if r.state.Over() {
		return PlayerView{}, game.Errorf(game.CodeMatchNotFound, "match %s is over", matchID)
	}
	cur := r.state.PlayerByAccount(accountID)
	if cur == nil || cur.Placement != nil {
		return PlayerView{}, &game.Error{
			Code:    game.CodePlayerNotFound,
			Message: fmt.Sprintf("account %d has no live seat", accountID),
			MatchID: matchID,
		}
	}

	next := cur.Clone()
	if err := cmd(next, r); err != nil {
		var ge *game.Error
		if errors.As(err, &ge) && ge.MatchID == "" {
			annotated := *ge
			annotated.MatchID, annotated.PlayerID = matchID, cur.ID
			return PlayerView{}, &annotated
		}
		return PlayerView{}, err
	}

	if err := s.repo.SavePlayerState(ctx, matchID, r.state.Version, next); err != nil {
		if errors.Is(err, game.ErrStaleVersion) {
			return PlayerView{}, game.ErrStaleVersion
		}
		s.logger.Error("persist player",
			"match_id", matchID,
			"player_id", cur.ID,
			"error", err,
		)
		return PlayerView{}, game.Internal(fmt.Errorf("save player: %w", err), matchID)
	}

	r.state.Version++
	idx := slices.Index(r.state.Players, cur)
	r.state.Players[idx] = next

	view := NewPlayerView(r.state, next)
	s.hub.Notify(notify.UserID(accountID), notify.Notification{Kind: notify.KindPlayerView, Data: view})
	return view, nil
}

// Buy buys the offer in shopIndex into boardIndex.
func (s *Service) Buy(ctx context.Context, matchID string, accountID int64, shopIndex, boardIndex int) (PlayerView, error) {
	return s.act(ctx, matchID, accountID, func(p *game.Player, _ *room) error {
		return shop.Buy(p, shopIndex, boardIndex)
	})
}

// Sell sells the unit in boardIndex.
func (s *Service) Sell(ctx context.Context, matchID string, accountID int64, boardIndex int) (PlayerView, error) {
	return s.act(ctx, matchID, accountID, func(p *game.Player, _ *room) error {
		return shop.Sell(p, boardIndex)
	})
}

// Reroll pays for a fresh shop.
func (s *Service) Reroll(ctx context.Context, matchID string, accountID int64) (PlayerView, error) {
	return s.act(ctx, matchID, accountID, func(p *game.Player, r *room) error {
		return shop.Reroll(p, s.catalog, r.rng)
	})
}

// Upgrade merges three copies on the board.
func (s *Service) Upgrade(ctx context.Context, matchID string, accountID int64, slots [shop.UpgradeCopies]int) (PlayerView, error) {
	return s.act(ctx, matchID, accountID, func(p *game.Player, _ *room) error {
		return shop.Upgrade(p, slots)
	})
}

// Move swaps two board slots.
func (s *Service) Move(ctx context.Context, matchID string, accountID int64, from, to int) (PlayerView, error) {
	return s.act(ctx, matchID, accountID, func(p *game.Player, _ *room) error {
		return shop.Move(p, from, to)
	})
}

// SetShopLock locks or unlocks the player's shop.
func (s *Service) SetShopLock(ctx context.Context, matchID string, accountID int64, locked bool) (PlayerView, error) {
	return s.act(ctx, matchID, accountID, func(p *game.Player, _ *room) error {
		shop.SetLock(p, locked)
		return nil
	})
}

// SelectAvatar picks one of the player's offered avatars.
func (s *Service) SelectAvatar(ctx context.Context, matchID string, accountID int64, avatar string) (PlayerView, error) {
	return s.act(ctx, matchID, accountID, func(p *game.Player, _ *room) error {
		if !slices.Contains(p.AvatarChoices, avatar) {
			return game.Errorf(game.CodeInvalidIndex, "avatar %q was not offered", avatar)
		}
		p.Avatar = avatar
		return nil
	})
}

// View returns the account's private view of a match.
func (s *Service) View(ctx context.Context, matchID string, accountID int64) (PlayerView, error) {
	r, err := s.room(ctx, matchID)
	if err != nil {
		return PlayerView{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.state.PlayerByAccount(accountID)
	if p == nil {
		return PlayerView{}, game.Errorf(game.CodePlayerNotFound, "account %d is not in match %s", accountID, matchID)
	}
	return NewPlayerView(r.state, p), nil
}
