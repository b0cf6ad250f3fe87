package game

import (
	"sort"
	"time"
)

// MaxPlayers is the seat capacity of a match.
const MaxPlayers = 8

// Match is the persisted state of one session.
type Match struct {
	ID        string
	Seed      uint64
	Players   []*Player
	Turn      Turn
	CreatedAt time.Time

	// Version is bumped by every successful save.
	Version int64
}

// Player returns the player with the given id, or nil.
func (m *Match) Player(id int64) *Player {
	for _, p := range m.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerByAccount returns the seat held by an external account, or nil.
func (m *Match) PlayerByAccount(accountID int64) *Player {
	for _, p := range m.Players {
		if p.AccountID != nil && *p.AccountID == accountID {
			return p
		}
	}
	return nil
}

// Alive returns the players with positive health, in seat order.
func (m *Match) Alive() []*Player {
	var out []*Player
	for _, p := range m.Players {
		if p.Alive() {
			out = append(out, p)
		}
	}
	return out
}

// Over reports whether the match reached GameOver.
func (m *Match) Over() bool {
	_, ok := m.Turn.(GameOver)
	return ok
}

// AssignPlacements gives a placement to every player whose health dropped
// to zero or below and who has none yet. The newly dead are ordered by
// ascending health (ties by id) and receive descending placements counting
// down from survivors+len(dead). It returns the players it placed.
func (m *Match) AssignPlacements() []*Player {
	var dead []*Player
	survivors := 0
	for _, p := range m.Players {
		switch {
		case p.Alive():
			survivors++
		case p.Placement == nil:
			dead = append(dead, p)
		}
	}
	sort.SliceStable(dead, func(i, j int) bool {
		if dead[i].Health != dead[j].Health {
			return dead[i].Health < dead[j].Health
		}
		return dead[i].ID < dead[j].ID
	})
	place := survivors + len(dead)
	for _, p := range dead {
		p.SetPlacement(place)
		place--
	}
	return dead
}

// Clone deep-copies the match.
func (m *Match) Clone() *Match {
	cp := *m
	cp.Players = make([]*Player, len(m.Players))
	for i, p := range m.Players {
		cp.Players[i] = p.Clone()
	}
	return &cp
}
