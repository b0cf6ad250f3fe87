package game

// Character is one character instance on a board or one offer in a shop.
// Shop offers carry ID 0; an instance gets its identity when bought.
type Character struct {
	ID          int64  `json:"id"`
	TemplateID  string `json:"template_id"`
	Name        string `json:"name"`
	Cost        int    `json:"cost"`
	BaseAttack  int    `json:"base_attack"`
	BaseHealth  int    `json:"base_health"`
	BonusAttack int    `json:"bonus_attack"`
	BonusHealth int    `json:"bonus_health"`
	Upgraded    bool   `json:"upgraded"`
}

// Attack returns the effective attack. Upgraded instances double their base.
func (c *Character) Attack() int {
	base := c.BaseAttack
	if c.Upgraded {
		base *= 2
	}
	return base + c.BonusAttack
}

// Health returns the effective health.
func (c *Character) Health() int {
	base := c.BaseHealth
	if c.Upgraded {
		base *= 2
	}
	return base + c.BonusHealth
}

// Clone returns a copy of c; nil stays nil.
func (c *Character) Clone() *Character {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
