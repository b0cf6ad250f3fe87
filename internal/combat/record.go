package combat

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/roach88/brawl/internal/game"
)

// ErrReplayMismatch means re-resolving a record gave a different result.
var ErrReplayMismatch = errors.New("combat replay mismatch")

// NewRand returns the random source for a fight seeded with seed in round.
func NewRand(seed uint64, round int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(round)))
}

// Record is the persisted trace of one fight: its inputs and a digest of
// its result.
type Record struct {
	MatchID string     `json:"match_id"`
	Round   int        `json:"round"`
	PlayerA int64      `json:"player_a"`
	PlayerB int64      `json:"player_b"`
	Padding bool       `json:"padding"`
	Seed    uint64     `json:"seed"`
	BoardA  game.Board `json:"board_a"`
	BoardB  game.Board `json:"board_b"`
	Winner  int        `json:"winner"`
	Damage  int        `json:"damage"`
	Actions int        `json:"actions"`
	Digest  string     `json:"digest"`
}

// NewRecord captures a resolved fight. Boards are copied so later changes
// to the players do not leak into the record.
func NewRecord(matchID string, round int, a, b *game.Player, padding bool, seed uint64, res *Result) (Record, error) {
	digest, err := res.Digest()
	if err != nil {
		return Record{}, fmt.Errorf("record %s round %d: %w", matchID, round, err)
	}
	return Record{
		MatchID: matchID,
		Round:   round,
		PlayerA: a.ID,
		PlayerB: b.ID,
		Padding: padding,
		Seed:    seed,
		BoardA:  a.Board.Clone(),
		BoardB:  b.Board.Clone(),
		Winner:  res.Winner,
		Damage:  res.Damage,
		Actions: len(res.Actions),
		Digest:  digest,
	}, nil
}

// Replay resolves the recorded fight again and checks it against the
// stored digest.
func (r *Record) Replay() (*Result, error) {
	res := Resolve(NewRand(r.Seed, r.Round), &r.BoardA, &r.BoardB)
	digest, err := res.Digest()
	if err != nil {
		return nil, err
	}
	if digest != r.Digest {
		return res, fmt.Errorf("%w: match %s round %d players %d/%d", ErrReplayMismatch, r.MatchID, r.Round, r.PlayerA, r.PlayerB)
	}
	return res, nil
}
