package combat

import (
	"fmt"
	"strings"

	"github.com/roach88/brawl/internal/game"
)

// Sides of a combat. Side A is the first player of a pairing.
const (
	SideA = 0
	SideB = 1
)

// Unit is a character's scratch state during one combat.
type Unit struct {
	ID         int64  `json:"id"`
	TemplateID string `json:"template_id"`
	Attack     int    `json:"attack"`
	Health     int    `json:"health"`
}

// Row is one side's battle positions.
type Row [game.BattleSlots]*Unit

// Snapshot holds both sides' battle positions.
type Snapshot [2]Row

// Ref points at a unit by side and slot.
type Ref struct {
	Side int   `json:"side"`
	Slot int   `json:"slot"`
	ID   int64 `json:"id"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s%d#%d", sideName(r.Side), r.Slot, r.ID)
}

// ActionKind distinguishes attacks from deaths.
type ActionKind string

const (
	ActionAttack ActionKind = "attack"
	ActionDie    ActionKind = "die"
)

// Action is one step of the combat log. Target is set for attacks only.
// Boards is the state right after the action.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Source Ref        `json:"source"`
	Target *Ref       `json:"target,omitempty"`
	Boards Snapshot   `json:"boards"`
}

func sideName(side int) string {
	if side == SideA {
		return "a"
	}
	return "b"
}

func (s Snapshot) clone() Snapshot {
	var out Snapshot
	for side := range s {
		for slot, u := range s[side] {
			if u != nil {
				cp := *u
				out[side][slot] = &cp
			}
		}
	}
	return out
}

// String renders both sides as "A[front | back] B[front | back]" with
// units as attack/health and empty slots as dots.
func (s Snapshot) String() string {
	return fmt.Sprintf("A[%s] B[%s]", s[SideA], s[SideB])
}

func (r Row) String() string {
	cell := func(u *Unit) string {
		if u == nil {
			return "."
		}
		return fmt.Sprintf("%d/%d", u.Attack, u.Health)
	}
	var front, back []string
	for slot, u := range r {
		if slot < game.FrontRow {
			front = append(front, cell(u))
		} else {
			back = append(back, cell(u))
		}
	}
	return strings.Join(front, " ") + " | " + strings.Join(back, " ")
}
