package game

// Board geometry. Slots 0-3 are the front row, 4-6 the back row and 7-11
// the bench. Only the first BattleSlots slots take part in combat.
const (
	BoardSize   = 12
	BattleSlots = 7
	FrontRow    = 4
)

// Board is a player's fixed slot layout; nil means empty.
type Board [BoardSize]*Character

// ValidSlot reports whether i addresses a board slot.
func ValidSlot(i int) bool {
	return i >= 0 && i < BoardSize
}

// FirstFree returns the lowest empty slot, or -1 when the board is full.
func (b *Board) FirstFree() int {
	for i, c := range b {
		if c == nil {
			return i
		}
	}
	return -1
}

// Occupied counts the filled slots.
func (b *Board) Occupied() int {
	n := 0
	for _, c := range b {
		if c != nil {
			n++
		}
	}
	return n
}

// CopiesOf returns the slots holding un-upgraded instances of templateID,
// in slot order.
func (b *Board) CopiesOf(templateID string) []int {
	var slots []int
	for i, c := range b {
		if c != nil && !c.Upgraded && c.TemplateID == templateID {
			slots = append(slots, i)
		}
	}
	return slots
}

// HasTemplate reports whether any instance of templateID is on the board.
func (b *Board) HasTemplate(templateID string) bool {
	for _, c := range b {
		if c != nil && c.TemplateID == templateID {
			return true
		}
	}
	return false
}

// Clone deep-copies the board.
func (b *Board) Clone() Board {
	var out Board
	for i, c := range b {
		out[i] = c.Clone()
	}
	return out
}
