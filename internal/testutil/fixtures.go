package testutil

import "github.com/roach88/brawl/internal/game"

// Account returns a pointer to an account id, for seats held by humans.
func Account(id int64) *int64 {
	return &id
}

// Character builds an un-upgraded character instance.
func Character(id int64, template string, attack, health int) *game.Character {
	return &game.Character{
		ID:         id,
		TemplateID: template,
		Name:       template,
		Cost:       1,
		BaseAttack: attack,
		BaseHealth: health,
	}
}

// Offer builds a shop offer: a character without an instance id.
func Offer(template string, cost, attack, health int) *game.Character {
	c := Character(0, template, attack, health)
	c.Cost = cost
	return c
}

// Player builds a player with starting values and the given board, in
// slot order starting at slot 0. Nil entries leave a slot empty.
func Player(id int64, accountID *int64, board ...*game.Character) *game.Player {
	p := game.NewPlayer(id, "", accountID)
	p.Name = "p" + string(rune('0'+id%10))
	for i, c := range board {
		if i >= game.BoardSize {
			break
		}
		p.Board[i] = c
	}
	return p
}
