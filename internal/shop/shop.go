// Package shop implements the economy operations on a player: shop
// generation, reroll, buy (with automatic upgrade), sell, upgrade and
// board moves.
//
// Every operation validates before it mutates; a returned error means the
// player was left untouched.
package shop

import (
	"math/rand/v2"

	"github.com/roach88/brawl/internal/catalog"
	"github.com/roach88/brawl/internal/game"
)

// Economy constants.
const (
	RerollCost = 1
	SellRefund = 1
	MaxMoney   = 16

	// UpgradeCopies is the number of identical units merged by an upgrade.
	UpgradeCopies = 3
)

// Catalog supplies the templates a player of a given level may be offered.
type Catalog interface {
	Pool(level int) []catalog.Template
}

// RoundMoney is the money a player holds at the start of a shop phase.
func RoundMoney(round int) int {
	return min(round/2+2, MaxMoney)
}

// Generate refreshes p's offers from the templates its level allows.
// A locked shop keeps its filled offers and only refills empty slots.
func Generate(p *game.Player, cat Catalog, rng *rand.Rand) {
	fill(p, cat, rng, p.Shop.Locked)
}

// Reroll pays RerollCost and draws a full new shop, ignoring the lock.
func Reroll(p *game.Player, cat Catalog, rng *rand.Rand) error {
	if p.Money < RerollCost {
		return game.Errorf(game.CodeInsufficientFunds, "reroll costs %d, have %d", RerollCost, p.Money)
	}
	p.Money -= RerollCost
	fill(p, cat, rng, false)
	return nil
}

func fill(p *game.Player, cat Catalog, rng *rand.Rand, keep bool) {
	var empty []int
	for i, offer := range p.Shop.Offers {
		if keep && offer != nil {
			continue
		}
		p.Shop.Offers[i] = nil
		empty = append(empty, i)
	}

	pool := cat.Pool(p.Level())
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	for i, slot := range empty {
		if i >= len(pool) {
			break
		}
		p.Shop.Offers[slot] = pool[i].Offer()
	}
}

// SetLock sets whether the next shop generation keeps current offers.
func SetLock(p *game.Player, locked bool) {
	p.Shop.Locked = locked
}

// Affordable returns the shop slots p can currently pay for.
func Affordable(p *game.Player) []int {
	var out []int
	for i, offer := range p.Shop.Offers {
		if offer != nil && offer.Cost <= p.Money {
			out = append(out, i)
		}
	}
	return out
}

// Buy purchases the offer in shopIndex and places it at boardIndex.
//
// When two un-upgraded copies of the same template are already on the
// board, the purchase merges all three into one upgraded unit placed at
// boardIndex. An occupant of boardIndex is moved to the first free slot.
func Buy(p *game.Player, shopIndex, boardIndex int) error {
	if shopIndex < 0 || shopIndex >= game.ShopSize || p.Shop.Offers[shopIndex] == nil {
		return game.Errorf(game.CodeInvalidIndex, "shop slot %d is empty or out of range", shopIndex)
	}
	if !game.ValidSlot(boardIndex) {
		return game.Errorf(game.CodeInvalidIndex, "board slot %d out of range", boardIndex)
	}
	offer := p.Shop.Offers[shopIndex]
	if p.Money < offer.Cost {
		return game.Errorf(game.CodeInsufficientFunds, "%s costs %d, have %d", offer.Name, offer.Cost, p.Money)
	}

	copies := p.Board.CopiesOf(offer.TemplateID)
	upgrade := len(copies) == UpgradeCopies-1
	if !upgrade && p.Board[boardIndex] != nil && p.Board.FirstFree() < 0 {
		return game.Errorf(game.CodeBoardFull, "no free slot to move %s", p.Board[boardIndex].Name)
	}

	unit := offer.Clone()
	unit.ID = p.NewInstanceID()
	if upgrade {
		parts := []*game.Character{unit}
		for _, slot := range copies {
			parts = append(parts, p.Board[slot])
			p.Board[slot] = nil
		}
		unit = merge(p, parts)
	}

	place(&p.Board, unit, boardIndex)
	p.Shop.Offers[shopIndex] = nil
	p.Money -= offer.Cost
	return nil
}

// Sell removes the unit in boardIndex for a flat refund.
func Sell(p *game.Player, boardIndex int) error {
	if !game.ValidSlot(boardIndex) || p.Board[boardIndex] == nil {
		return game.Errorf(game.CodeInvalidIndex, "board slot %d is empty or out of range", boardIndex)
	}
	p.Board[boardIndex] = nil
	p.Money += SellRefund
	return nil
}

// Upgrade merges three un-upgraded copies of one template into slots[0].
func Upgrade(p *game.Player, slots [UpgradeCopies]int) error {
	seen := make(map[int]bool, len(slots))
	var parts []*game.Character
	for _, slot := range slots {
		if !game.ValidSlot(slot) || p.Board[slot] == nil {
			return game.Errorf(game.CodeInvalidIndex, "board slot %d is empty or out of range", slot)
		}
		if seen[slot] {
			return game.Errorf(game.CodeInvalidUpgradeSet, "slot %d listed twice", slot)
		}
		seen[slot] = true

		c := p.Board[slot]
		if c.Upgraded {
			return game.Errorf(game.CodeInvalidUpgradeSet, "%s in slot %d is already upgraded", c.Name, slot)
		}
		if len(parts) > 0 && c.TemplateID != parts[0].TemplateID {
			return game.Errorf(game.CodeInvalidUpgradeSet, "slot %d holds %s, want %s", slot, c.TemplateID, parts[0].TemplateID)
		}
		parts = append(parts, c)
	}

	for _, slot := range slots {
		p.Board[slot] = nil
	}
	p.Board[slots[0]] = merge(p, parts)
	return nil
}

// Move swaps two board slots; either may be empty.
func Move(p *game.Player, from, to int) error {
	if !game.ValidSlot(from) || !game.ValidSlot(to) {
		return game.Errorf(game.CodeInvalidIndex, "move %d -> %d out of range", from, to)
	}
	p.Board[from], p.Board[to] = p.Board[to], p.Board[from]
	return nil
}

func merge(p *game.Player, parts []*game.Character) *game.Character {
	out := parts[0].Clone()
	out.ID = p.NewInstanceID()
	out.Upgraded = true
	out.BonusAttack = 0
	out.BonusHealth = 0
	for _, c := range parts {
		out.BonusAttack += c.BonusAttack
		out.BonusHealth += c.BonusHealth
	}
	return out
}

func place(b *game.Board, c *game.Character, slot int) {
	if b[slot] != nil {
		b[b.FirstFree()] = b[slot]
	}
	b[slot] = c
}
