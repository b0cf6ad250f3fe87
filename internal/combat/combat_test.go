package combat

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brawl/internal/game"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 7))
}

func char(id int64, attack, health int) *game.Character {
	return &game.Character{ID: id, TemplateID: "t", BaseAttack: attack, BaseHealth: health}
}

func board(units map[int]*game.Character) *game.Board {
	var b game.Board
	for slot, c := range units {
		b[slot] = c
	}
	return &b
}

func TestResolve_GoldenDuel(t *testing.T) {
	a := board(map[int]*game.Character{0: char(1, 2, 2), 4: char(3, 1, 1)})
	b := board(map[int]*game.Character{0: char(2, 1, 3)})

	res := Resolve(newRand(1), a, b)

	var buf bytes.Buffer
	require.NoError(t, res.WriteLog(&buf))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "duel_backline_survives", buf.Bytes())
}

func TestResolve_EmptyBoardsDraw(t *testing.T) {
	res := Resolve(newRand(1), &game.Board{}, &game.Board{})

	assert.Empty(t, res.Actions)
	assert.Equal(t, -1, res.Winner)
	assert.Equal(t, -1, res.Loser())
	assert.Zero(t, res.Damage)
}

func TestResolve_EmptySideTakesFullDamage(t *testing.T) {
	a := board(map[int]*game.Character{0: char(1, 1, 1), 5: char(2, 1, 1), 6: char(3, 0, 1)})

	res := Resolve(newRand(1), a, &game.Board{})

	assert.Empty(t, res.Actions)
	assert.Equal(t, SideA, res.Winner)
	assert.Equal(t, 3, res.Damage)
}

func TestResolve_BenchDoesNotFight(t *testing.T) {
	a := board(map[int]*game.Character{7: char(1, 5, 5), 11: char(2, 5, 5)})
	b := board(map[int]*game.Character{3: char(3, 1, 1)})

	res := Resolve(newRand(1), a, b)

	assert.Empty(t, res.Actions)
	assert.Equal(t, SideB, res.Winner)
	assert.Equal(t, 1, res.Damage)
	assert.Equal(t, [2]int{0, 1}, res.Survivors)
}

func TestResolve_SimultaneousDamage(t *testing.T) {
	a := board(map[int]*game.Character{0: char(1, 3, 3)})
	b := board(map[int]*game.Character{0: char(2, 3, 3)})

	res := Resolve(newRand(1), a, b)

	require.Len(t, res.Actions, 3)
	assert.Equal(t, ActionAttack, res.Actions[0].Kind)
	assert.Equal(t, ActionDie, res.Actions[1].Kind)
	assert.Equal(t, int64(1), res.Actions[1].Source.ID, "attacker dies first")
	assert.Equal(t, ActionDie, res.Actions[2].Kind)
	assert.Equal(t, int64(2), res.Actions[2].Source.ID)
	assert.Equal(t, -1, res.Winner)
	assert.Zero(t, res.Damage)
}

func TestResolve_LoserWithSurvivorsTakesNoDamage(t *testing.T) {
	a := board(map[int]*game.Character{0: char(1, 0, 10), 1: char(2, 0, 10)})
	b := board(map[int]*game.Character{0: char(3, 1, 1)})

	res := Resolve(newRand(1), a, b)

	assert.Empty(t, res.Actions, "side A cannot deal damage")
	assert.Equal(t, SideA, res.Winner)
	assert.Equal(t, [2]int{2, 1}, res.Survivors)
	assert.Zero(t, res.Damage)
}

func TestResolve_UpgradedStatsUsed(t *testing.T) {
	big := char(1, 2, 2)
	big.Upgraded = true
	a := board(map[int]*game.Character{0: big})
	b := board(map[int]*game.Character{0: char(2, 3, 4)})

	res := Resolve(newRand(1), a, b)

	// 4/4 against 3/4: the first exchange leaves 4/1 and 3/0.
	require.GreaterOrEqual(t, len(res.Actions), 2)
	after := res.Actions[0].Boards
	assert.Equal(t, 1, after[SideA][0].Health)
	assert.Equal(t, 0, after[SideB][0].Health)
	assert.Equal(t, SideA, res.Winner)
	assert.Equal(t, 1, res.Damage)
}

func TestResolve_CursorWraps(t *testing.T) {
	a := board(map[int]*game.Character{2: char(1, 1, 10), 5: char(2, 1, 10)})
	b := board(map[int]*game.Character{0: char(3, 1, 100)})

	res := Resolve(newRand(1), a, b)

	require.Greater(t, len(res.Actions), 5)
	var slots []int
	for _, act := range res.Actions[:5] {
		require.Equal(t, ActionAttack, act.Kind)
		if act.Source.Side == SideA {
			slots = append(slots, act.Source.Slot)
		}
	}
	assert.Equal(t, []int{2, 5, 2}, slots)
}

func TestResolve_FrontRowShieldsBackRow(t *testing.T) {
	a := board(map[int]*game.Character{0: char(1, 1, 50)})
	b := board(map[int]*game.Character{1: char(2, 1, 3), 2: char(3, 1, 3), 6: char(4, 1, 3)})

	res := Resolve(newRand(42), a, b)

	frontAlive := 2
	for _, act := range res.Actions {
		switch {
		case act.Kind == ActionDie && act.Source.Side == SideB && act.Source.Slot < game.FrontRow:
			frontAlive--
		case act.Kind == ActionAttack && act.Source.Side == SideA && frontAlive > 0:
			assert.Less(t, act.Target.Slot, game.FrontRow)
		}
	}
	assert.Equal(t, 0, frontAlive)
}

func TestResolve_DoesNotMutateInputs(t *testing.T) {
	a := board(map[int]*game.Character{0: char(1, 2, 2)})
	b := board(map[int]*game.Character{0: char(2, 2, 2)})
	beforeA, beforeB := a.Clone(), b.Clone()

	Resolve(newRand(1), a, b)

	assert.Equal(t, beforeA, *a)
	assert.Equal(t, beforeB, *b)
}

func randomBoard(rng *rand.Rand, idBase int64) *game.Board {
	var b game.Board
	for slot := range game.BattleSlots {
		if rng.IntN(3) == 0 {
			continue
		}
		b[slot] = char(idBase+int64(slot), rng.IntN(5), 1+rng.IntN(8))
	}
	return &b
}

func TestResolve_DeterministicAndConsistent(t *testing.T) {
	gen := newRand(99)
	for i := range 200 {
		a := randomBoard(gen, 100)
		b := randomBoard(gen, 200)
		seed := uint64(i)

		first := Resolve(newRand(seed), a, b)
		second := Resolve(newRand(seed), a, b)
		require.Equal(t, first, second, "case %d", i)

		d1, err := first.Digest()
		require.NoError(t, err)
		d2, err := second.Digest()
		require.NoError(t, err)
		assert.Equal(t, d1, d2)

		for _, act := range first.Actions {
			if act.Kind == ActionDie {
				assert.Nil(t, act.Boards[act.Source.Side][act.Source.Slot], "case %d: dead unit still on board", i)
			}
		}

		switch loser := first.Loser(); {
		case loser < 0:
			assert.Equal(t, first.Survivors[SideA], first.Survivors[SideB])
			assert.Zero(t, first.Damage)
		case first.Survivors[loser] == 0:
			assert.Equal(t, first.Survivors[first.Winner], first.Damage)
		default:
			assert.Zero(t, first.Damage)
		}
	}
}

func TestResult_Apply(t *testing.T) {
	pa := game.NewPlayer(1, "a", nil)
	pb := game.NewPlayer(2, "b", nil)

	res := &Result{Winner: SideA, Damage: 3}
	res.Apply(pa, pb)
	assert.Equal(t, game.StartingHealth, pa.Health)
	assert.Equal(t, game.StartingHealth-3, pb.Health)

	res = &Result{Winner: SideB, Damage: 2}
	res.Apply(pa, nil)
	assert.Equal(t, game.StartingHealth-2, pa.Health)

	res = &Result{Winner: -1}
	res.Apply(pa, pb)
	assert.Equal(t, game.StartingHealth-2, pa.Health)

	res = &Result{Winner: SideA, Damage: 1}
	res.Apply(pa, nil)
	assert.Equal(t, game.StartingHealth-2, pa.Health, "nil loser skipped")
}

func TestFight_AppliesDamageToPlayer(t *testing.T) {
	pa := game.NewPlayer(1, "a", nil)
	pb := game.NewPlayer(2, "b", nil)
	pa.Board[0] = char(1, 5, 5)
	pa.Board[1] = char(2, 5, 5)
	pb.Board[0] = char(3, 1, 1)

	res := Fight(newRand(1), pa, pb)

	assert.Equal(t, SideA, res.Winner)
	assert.Equal(t, 2, res.Damage)
	assert.Equal(t, game.StartingHealth, pa.Health)
	assert.Equal(t, game.StartingHealth-2, pb.Health)
	assert.Equal(t, 5, pa.Board[0].Health(), "boards are scratch")
}
