package match

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/brawl/internal/bot"
	"github.com/roach88/brawl/internal/combat"
	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/pairing"
	"github.com/roach88/brawl/internal/shop"
)

// Phase timing.
const (
	BaseShopSeconds   = 30
	MaxShopSeconds    = 90
	MinCombatSeconds  = 5
	CombatSlowdown    = 1.1
	shopSecondsPerTwo = 5
)

// ShopDuration is how long the shop phase of round lasts.
func ShopDuration(round int) time.Duration {
	secs := min(MaxShopSeconds, BaseShopSeconds+max(0, round/2-1)*shopSecondsPerTwo)
	return time.Duration(secs) * time.Second
}

// CombatDuration is how long clients get to play back the longest fight.
func CombatDuration(maxActions int) time.Duration {
	secs := int(math.Round(float64(maxActions) * CombatSlowdown))
	return time.Duration(max(MinCombatSeconds, secs)) * time.Second
}

// phaseRand is the random source for the transition into round.
func phaseRand(seed uint64, round int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(round)))
}

// fight is one resolved pairing of a combat round.
type fight struct {
	pairing.Matchup
	seed   uint64
	result *combat.Result
}

// transition is what a phase change produced, for persistence and
// publishing.
type transition struct {
	fights     []fight
	records    []combat.Record
	eliminated []*game.Player
}

// advanceTurn moves m one step through Shop -> Combat -> Shop ... and
// GameOver. m must be a private copy; it is mutated in place.
func (s *Service) advanceTurn(ctx context.Context, m *game.Match, now time.Time) (*transition, error) {
	switch t := m.Turn.(type) {
	case game.ShopTurn:
		return s.enterCombat(ctx, m, t.Number+1, now)
	case game.CombatTurn:
		return s.enterShop(m, t.Number+1, now), nil
	case game.GameOver:
		return &transition{}, nil
	default:
		return nil, game.Errorf(game.CodeInternal, "unknown turn %T", t)
	}
}

// openShop runs the economy part of a shop phase for every living player.
func (s *Service) openShop(m *game.Match, round int, now time.Time) {
	rng := phaseRand(m.Seed, round)
	for _, p := range m.Players {
		if !p.Alive() {
			continue
		}
		shop.Generate(p, s.catalog, rng)
		p.Money = shop.RoundMoney(round)
		if p.IsBot() {
			summary := bot.Run(p, s.catalog, rng)
			s.logger.Debug("bot shop phase",
				"match_id", m.ID,
				"player_id", p.ID,
				"bought", summary.Bought,
				"sold", summary.Sold,
				"rerolls", summary.Rerolls,
			)
		}
	}
	m.Turn = game.ShopTurn{Number: round, DueAt: now.Add(ShopDuration(round))}
}

func (s *Service) enterShop(m *game.Match, round int, now time.Time) *transition {
	tr := &transition{eliminated: m.AssignPlacements()}

	alive := m.Alive()
	if len(alive) <= 1 {
		if len(alive) == 1 {
			alive[0].SetPlacement(1)
		}
		m.Turn = game.GameOver{Number: round}
		return tr
	}

	for _, p := range alive {
		p.Experience++
	}
	s.openShop(m, round, now)
	return tr
}

func (s *Service) enterCombat(ctx context.Context, m *game.Match, round int, now time.Time) (*transition, error) {
	rng := phaseRand(m.Seed, round)
	tr := &transition{}
	for _, mu := range pairing.Players(round, m.Players) {
		tr.fights = append(tr.fights, fight{Matchup: mu, seed: rng.Uint64()})
	}

	// Pairs never share a player, so fights resolve independently. Damage
	// is applied afterwards in pairing order.
	g, gctx := errgroup.WithContext(ctx)
	for i := range tr.fights {
		f := &tr.fights[i]
		if f.B == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f.result = combat.Resolve(combat.NewRand(f.seed, round), &f.A.Board, &f.B.Board)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	maxActions := 0
	for _, f := range tr.fights {
		if f.result == nil {
			continue
		}
		rec, err := combat.NewRecord(m.ID, round, f.A, f.B, f.Padding, f.seed, f.result)
		if err != nil {
			return nil, game.Internal(err, m.ID)
		}
		tr.records = append(tr.records, rec)

		if f.Padding {
			f.result.Apply(f.A, nil)
		} else {
			f.result.Apply(f.A, f.B)
		}
		maxActions = max(maxActions, len(f.result.Actions))
	}

	tr.eliminated = m.AssignPlacements()
	m.Turn = game.CombatTurn{Number: round, DueAt: now.Add(CombatDuration(maxActions))}
	return tr, nil
}
