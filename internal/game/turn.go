package game

import (
	"fmt"
	"time"
)

// Phase names the variant of a Turn.
type Phase string

const (
	PhaseShop     Phase = "shop"
	PhaseCombat   Phase = "combat"
	PhaseGameOver Phase = "game_over"
)

// Turn is the current state of a match's phase machine. It is one of
// ShopTurn, CombatTurn or GameOver; callers switch on the concrete type.
type Turn interface {
	Phase() Phase
	Round() int
	// Due is when the next transition is due. Zero for GameOver.
	Due() time.Time
	isTurn()
}

// ShopTurn is the economy phase of a round.
type ShopTurn struct {
	Number int
	DueAt  time.Time
}

// CombatTurn is the phase right after combat was resolved.
type CombatTurn struct {
	Number int
	DueAt  time.Time
}

// GameOver is terminal.
type GameOver struct {
	Number int
}

func (ShopTurn) Phase() Phase     { return PhaseShop }
func (t ShopTurn) Round() int     { return t.Number }
func (t ShopTurn) Due() time.Time { return t.DueAt }
func (ShopTurn) isTurn()          {}

func (CombatTurn) Phase() Phase     { return PhaseCombat }
func (t CombatTurn) Round() int     { return t.Number }
func (t CombatTurn) Due() time.Time { return t.DueAt }
func (CombatTurn) isTurn()          {}

func (GameOver) Phase() Phase   { return PhaseGameOver }
func (t GameOver) Round() int   { return t.Number }
func (GameOver) Due() time.Time { return time.Time{} }
func (GameOver) isTurn()        {}

// NewTurn rebuilds a Turn from its persisted parts.
func NewTurn(phase Phase, round int, due time.Time) (Turn, error) {
	switch phase {
	case PhaseShop:
		return ShopTurn{Number: round, DueAt: due}, nil
	case PhaseCombat:
		return CombatTurn{Number: round, DueAt: due}, nil
	case PhaseGameOver:
		return GameOver{Number: round}, nil
	default:
		return nil, fmt.Errorf("unknown phase %q", phase)
	}
}

// TurnInfo is the serializable form of a Turn.
type TurnInfo struct {
	Phase Phase      `json:"phase"`
	Round int        `json:"round"`
	DueAt *time.Time `json:"due_at,omitempty"`
}

// DescribeTurn flattens t for views and logs.
func DescribeTurn(t Turn) TurnInfo {
	info := TurnInfo{Phase: t.Phase(), Round: t.Round()}
	if due := t.Due(); !due.IsZero() {
		info.DueAt = &due
	}
	return info
}
