package game

// Starting values and limits for a player.
const (
	StartingHealth     = 10
	StartingMoney      = 2
	StartingExperience = 5
	MaxLevel           = 10
	AvatarChoices      = 4
	ShopSize           = 5
)

// Shop holds a player's current offers.
type Shop struct {
	Offers [ShopSize]*Character `json:"offers"`
	Locked bool                 `json:"locked"`
}

// Clone deep-copies the shop.
func (s *Shop) Clone() Shop {
	out := Shop{Locked: s.Locked}
	for i, c := range s.Offers {
		out.Offers[i] = c.Clone()
	}
	return out
}

// Player is one seat in a match: economy, board and standing.
//
// A player without an AccountID is a bot.
type Player struct {
	ID            int64    `json:"id"`
	AccountID     *int64   `json:"account_id,omitempty"`
	Name          string   `json:"name"`
	Board         Board    `json:"board"`
	Avatar        string   `json:"avatar,omitempty"`
	AvatarChoices []string `json:"avatar_choices"`
	Shop          Shop     `json:"shop"`
	Health        int      `json:"health"`
	Money         int      `json:"money"`
	Experience    int      `json:"experience"`
	Placement     *int     `json:"placement,omitempty"`

	// NextInstance is the last instance serial handed out by NewInstanceID.
	NextInstance int64 `json:"next_instance"`
}

// NewPlayer returns a player with starting health, money and experience.
func NewPlayer(id int64, name string, accountID *int64) *Player {
	return &Player{
		ID:         id,
		AccountID:  accountID,
		Name:       name,
		Health:     StartingHealth,
		Money:      StartingMoney,
		Experience: StartingExperience,
	}
}

// Level is derived from experience and capped at MaxLevel.
func (p *Player) Level() int {
	return min(p.Experience/3, MaxLevel)
}

// IsBot reports whether the player has no external account.
func (p *Player) IsBot() bool {
	return p.AccountID == nil
}

// Alive reports whether the player still has positive health.
func (p *Player) Alive() bool {
	return p.Health > 0
}

// DisplayHealth floors health at zero.
func (p *Player) DisplayHealth() int {
	return max(p.Health, 0)
}

// NewInstanceID returns a fresh identity for a bought character.
// Identities are unique within a match: the player id occupies the high bits.
func (p *Player) NewInstanceID() int64 {
	p.NextInstance++
	return p.ID<<32 | p.NextInstance
}

// SetPlacement records the final placement.
func (p *Player) SetPlacement(place int) {
	p.Placement = &place
}

// Clone deep-copies the player.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Board = p.Board.Clone()
	cp.Shop = p.Shop.Clone()
	cp.AvatarChoices = append([]string(nil), p.AvatarChoices...)
	if p.AccountID != nil {
		acc := *p.AccountID
		cp.AccountID = &acc
	}
	if p.Placement != nil {
		place := *p.Placement
		cp.Placement = &place
	}
	return &cp
}
