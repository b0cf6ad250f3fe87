// Package bot plays the shop phase for players without an account.
package bot

import (
	"math/rand/v2"

	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/shop"
)

// MaxIterations bounds the decisions a bot makes per shop phase.
const MaxIterations = 20

// Summary counts what a bot did during one shop phase.
type Summary struct {
	Bought  int
	Sold    int
	Rerolls int
}

// Run spends p's money. Each iteration either rerolls (nothing
// affordable), sells the weakest unit (board full) or buys, preferring
// templates already on the board. It stops when money runs out, when a
// reroll fails, or after MaxIterations.
func Run(p *game.Player, cat shop.Catalog, rng *rand.Rand) Summary {
	var s Summary

	if p.Avatar == "" && len(p.AvatarChoices) > 0 {
		p.Avatar = p.AvatarChoices[rng.IntN(len(p.AvatarChoices))]
	}

	for i := 0; i < MaxIterations && p.Money > 0; i++ {
		affordable := shop.Affordable(p)
		if len(affordable) == 0 {
			if err := shop.Reroll(p, cat, rng); err != nil {
				break
			}
			s.Rerolls++
			continue
		}

		free := p.Board.FirstFree()
		if free < 0 {
			slot := weakest(&p.Board)
			if slot < 0 || shop.Sell(p, slot) != nil {
				break
			}
			s.Sold++
			continue
		}

		pick := -1
		for _, idx := range affordable {
			if p.Board.HasTemplate(p.Shop.Offers[idx].TemplateID) {
				pick = idx
				break
			}
		}
		if pick < 0 {
			pick = affordable[rng.IntN(len(affordable))]
		}
		if err := shop.Buy(p, pick, free); err != nil {
			break
		}
		s.Bought++
	}

	return s
}

// weakest returns the occupied slot with the lowest effective attack,
// lowest slot first on ties, or -1 for an empty board.
func weakest(b *game.Board) int {
	best := -1
	for slot, c := range b {
		if c == nil {
			continue
		}
		if best < 0 || c.Attack() < b[best].Attack() {
			best = slot
		}
	}
	return best
}
