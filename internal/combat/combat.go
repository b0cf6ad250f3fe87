// Package combat resolves a fight between two boards.
//
// Sides alternate. The active side's cursor advances cyclically to its next
// occupied battle slot; that unit trades blows with a random defender from
// the opposing front row (back row once the front row is empty). Both take
// damage computed from pre-exchange attack values. The fight ends as soon
// as one side has no unit with positive attack left.
//
// Resolution works on scratch copies; the boards passed in are never
// modified. The only persistent effect is the damage applied by
// Result.Apply.
package combat

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/roach88/brawl/internal/canon"
	"github.com/roach88/brawl/internal/game"
)

// MaxExchanges caps a fight. Stat ranges make this unreachable in practice.
const MaxExchanges = 1000

// Result is the outcome of one fight.
type Result struct {
	Actions []Action `json:"actions"`

	// Boards is the final state of both sides.
	Boards Snapshot `json:"boards"`

	Survivors [2]int `json:"survivors"`

	// Winner is SideA, SideB or -1 for a draw.
	Winner int `json:"winner"`

	// Damage is the health the loser takes. Non-zero only when the loser
	// has no survivors.
	Damage int `json:"damage"`
}

// Loser returns the losing side, or -1 for a draw.
func (r *Result) Loser() int {
	if r.Winner < 0 {
		return -1
	}
	return 1 - r.Winner
}

// Apply subtracts the damage from the losing player's health. Players are
// given in side order; a nil player is skipped.
func (r *Result) Apply(a, b *game.Player) {
	loser := r.Loser()
	if loser < 0 || r.Damage == 0 {
		return
	}
	if p := [2]*game.Player{a, b}[loser]; p != nil {
		p.Health -= r.Damage
	}
}

// Digest identifies the action log and outcome for replay checks.
func (r *Result) Digest() (string, error) {
	return canon.Digest(canon.DomainCombat, r)
}

// WriteLog writes a line per action and a closing result line.
func (r *Result) WriteLog(w io.Writer) error {
	for i, a := range r.Actions {
		var err error
		switch a.Kind {
		case ActionAttack:
			_, err = fmt.Fprintf(w, "%03d attack %s -> %s  %s\n", i, a.Source, a.Target, a.Boards)
		case ActionDie:
			_, err = fmt.Fprintf(w, "%03d die %s  %s\n", i, a.Source, a.Boards)
		}
		if err != nil {
			return err
		}
	}

	outcome := "draw"
	if r.Winner >= 0 {
		outcome = "winner=" + "AB"[r.Winner:r.Winner+1]
	}
	_, err := fmt.Fprintf(w, "result %s survivors=%d-%d damage=%d\n", outcome, r.Survivors[SideA], r.Survivors[SideB], r.Damage)
	return err
}

type arena struct {
	sides   Snapshot
	cursors [2]int
	rng     *rand.Rand
	actions []Action
}

// Resolve fights board a (side A) against board b (side B). Only battle
// slots take part. The result depends only on the boards and rng.
func Resolve(rng *rand.Rand, a, b *game.Board) *Result {
	ar := &arena{
		sides:   Snapshot{toRow(a), toRow(b)},
		cursors: [2]int{-1, -1},
		rng:     rng,
	}

	side := SideA
	for n := 0; n < MaxExchanges && ar.armed(SideA) && ar.armed(SideB); n++ {
		ar.exchange(side)
		side = 1 - side
	}

	res := &Result{
		Actions: ar.actions,
		Boards:  ar.sides.clone(),
		Winner:  -1,
	}
	res.Survivors = [2]int{ar.living(SideA), ar.living(SideB)}
	switch {
	case res.Survivors[SideA] > res.Survivors[SideB]:
		res.Winner = SideA
	case res.Survivors[SideB] > res.Survivors[SideA]:
		res.Winner = SideB
	}
	if loser := res.Loser(); loser >= 0 && res.Survivors[loser] == 0 {
		res.Damage = res.Survivors[res.Winner]
	}
	return res
}

// Fight resolves a against b and applies the damage.
func Fight(rng *rand.Rand, a, b *game.Player) *Result {
	res := Resolve(rng, &a.Board, &b.Board)
	res.Apply(a, b)
	return res
}

func toRow(b *game.Board) Row {
	var row Row
	for slot := range row {
		if c := b[slot]; c != nil {
			row[slot] = &Unit{
				ID:         c.ID,
				TemplateID: c.TemplateID,
				Attack:     c.Attack(),
				Health:     c.Health(),
			}
		}
	}
	return row
}

func (ar *arena) exchange(side int) {
	foe := 1 - side
	atkSlot := ar.advance(side)
	defSlot := ar.pickDefender(foe)
	attacker := ar.sides[side][atkSlot]
	defender := ar.sides[foe][defSlot]

	dealt, taken := attacker.Attack, defender.Attack
	attacker.Health -= taken
	defender.Health -= dealt

	src := Ref{Side: side, Slot: atkSlot, ID: attacker.ID}
	dst := Ref{Side: foe, Slot: defSlot, ID: defender.ID}
	ar.emit(ActionAttack, src, &dst)

	if attacker.Health <= 0 {
		ar.sides[side][atkSlot] = nil
		ar.emit(ActionDie, src, nil)
	}
	if defender.Health <= 0 {
		ar.sides[foe][defSlot] = nil
		ar.emit(ActionDie, dst, nil)
	}
}

// advance moves side's cursor to its next occupied slot, wrapping.
// The caller guarantees the side has a unit.
func (ar *arena) advance(side int) int {
	for step := 1; step <= game.BattleSlots; step++ {
		slot := (ar.cursors[side] + step) % game.BattleSlots
		if ar.sides[side][slot] != nil {
			ar.cursors[side] = slot
			return slot
		}
	}
	panic("combat: advance on empty side")
}

func (ar *arena) pickDefender(side int) int {
	var front, back []int
	for slot, u := range ar.sides[side] {
		switch {
		case u == nil:
		case slot < game.FrontRow:
			front = append(front, slot)
		default:
			back = append(back, slot)
		}
	}
	if len(front) > 0 {
		return front[ar.rng.IntN(len(front))]
	}
	return back[ar.rng.IntN(len(back))]
}

func (ar *arena) emit(kind ActionKind, src Ref, dst *Ref) {
	ar.actions = append(ar.actions, Action{
		Kind:   kind,
		Source: src,
		Target: dst,
		Boards: ar.sides.clone(),
	})
}

func (ar *arena) armed(side int) bool {
	for _, u := range ar.sides[side] {
		if u != nil && u.Attack > 0 {
			return true
		}
	}
	return false
}

func (ar *arena) living(side int) int {
	n := 0
	for _, u := range ar.sides[side] {
		if u != nil {
			n++
		}
	}
	return n
}
