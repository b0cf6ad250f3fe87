// Package pairing assigns combat opponents for a round using the
// round-robin circle method: seat 0 stays fixed while seats 1..n-1 rotate
// by one position per round.
package pairing

import (
	"sort"

	"github.com/roach88/brawl/internal/game"
)

// Pair is a pair of seat indices.
type Pair struct {
	A, B int
}

// Pairs returns the opponent pairs for round among n seats. n must be even;
// odd counts are padded by the caller. Fewer than two seats yield no pairs.
func Pairs(round, n int) []Pair {
	if n < 2 {
		return nil
	}
	ring := n - 1
	half := n / 2
	seat := func(k int) int {
		return (round+k)%ring + 1
	}

	groupA := make([]int, 0, half)
	groupA = append(groupA, 0)
	for k := 0; k < half-1; k++ {
		groupA = append(groupA, seat(k))
	}

	groupB := make([]int, 0, half)
	for k := n - 2; k >= half-1; k-- {
		groupB = append(groupB, seat(k))
	}

	pairs := make([]Pair, half)
	for i := range pairs {
		pairs[i] = Pair{A: groupA[i], B: groupB[i]}
	}
	return pairs
}

// Matchup is a resolved pairing of players for a round.
//
// B is nil when A has a bye. Padding marks B as an eliminated player that
// fills an odd seat count; it fights but never receives results.
type Matchup struct {
	A, B    *game.Player
	Padding bool
}

// Players pairs the living players of a match for round. Players are
// ordered by id. An odd living count is padded with the eliminated player
// of lowest id, or with a bye when nobody has been eliminated yet.
func Players(round int, players []*game.Player) []Matchup {
	var alive, dead []*game.Player
	for _, p := range players {
		if p.Alive() {
			alive = append(alive, p)
		} else {
			dead = append(dead, p)
		}
	}
	byID := func(ps []*game.Player) {
		sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
	}
	byID(alive)
	byID(dead)

	seats := alive
	var padding *game.Player
	n := len(seats)
	if n%2 == 1 {
		if len(dead) > 0 {
			padding = dead[0]
			seats = append(seats, padding)
		}
		// Without anyone to pad with, the extra seat is empty and
		// whoever draws it has a bye.
		n++
	}

	seatAt := func(i int) *game.Player {
		if i < len(seats) {
			return seats[i]
		}
		return nil
	}

	var out []Matchup
	for _, pr := range Pairs(round, n) {
		m := Matchup{A: seatAt(pr.A), B: seatAt(pr.B)}
		switch {
		case m.A == nil || (padding != nil && m.A == padding):
			m.A, m.B = m.B, m.A
			m.Padding = m.B != nil
		case padding != nil && m.B == padding:
			m.Padding = true
		}
		out = append(out, m)
	}
	return out
}
