package match

import (
	"github.com/roach88/brawl/internal/combat"
	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/notify"
)

// PlayerSummary is what everyone in a match sees about a player.
type PlayerSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	Bot       bool   `json:"bot"`
	Health    int    `json:"health"`
	Level     int    `json:"level"`
	Placement *int   `json:"placement,omitempty"`
}

// MatchView is the public state of a match, published to the match topic.
type MatchView struct {
	ID      string          `json:"id"`
	Turn    game.TurnInfo   `json:"turn"`
	Players []PlayerSummary `json:"players"`
}

// NewMatchView builds the public view of m.
func NewMatchView(m *game.Match) MatchView {
	v := MatchView{ID: m.ID, Turn: game.DescribeTurn(m.Turn)}
	for _, p := range m.Players {
		v.Players = append(v.Players, PlayerSummary{
			ID:        p.ID,
			Name:      p.Name,
			Avatar:    p.Avatar,
			Bot:       p.IsBot(),
			Health:    p.DisplayHealth(),
			Level:     p.Level(),
			Placement: p.Placement,
		})
	}
	return v
}

// PlayerView is a player's own economy and board.
type PlayerView struct {
	MatchID       string        `json:"match_id"`
	PlayerID      int64         `json:"player_id"`
	Turn          game.TurnInfo `json:"turn"`
	Health        int           `json:"health"`
	Money         int           `json:"money"`
	Experience    int           `json:"experience"`
	Level         int           `json:"level"`
	Board         game.Board    `json:"board"`
	Shop          game.Shop     `json:"shop"`
	Avatar        string        `json:"avatar,omitempty"`
	AvatarChoices []string      `json:"avatar_choices"`
	Placement     *int          `json:"placement,omitempty"`
}

// NewPlayerView builds p's private view.
func NewPlayerView(m *game.Match, p *game.Player) PlayerView {
	return PlayerView{
		MatchID:       m.ID,
		PlayerID:      p.ID,
		Turn:          game.DescribeTurn(m.Turn),
		Health:        p.DisplayHealth(),
		Money:         p.Money,
		Experience:    p.Experience,
		Level:         p.Level(),
		Board:         p.Board.Clone(),
		Shop:          p.Shop.Clone(),
		Avatar:        p.Avatar,
		AvatarChoices: append([]string(nil), p.AvatarChoices...),
		Placement:     p.Placement,
	}
}

// CombatReport is sent to each human after their fight. Opponent is nil
// for a bye; Side tells which side of Result the player was on.
type CombatReport struct {
	MatchID  string         `json:"match_id"`
	Round    int            `json:"round"`
	PlayerID int64          `json:"player_id"`
	Opponent *int64         `json:"opponent,omitempty"`
	Side     int            `json:"side"`
	Result   *combat.Result `json:"result,omitempty"`
}

// LobbyStarted tells lobby members which match their lobby became.
type LobbyStarted struct {
	LobbyID string `json:"lobby_id"`
	MatchID string `json:"match_id"`
}

// publish sends the state of m after a transition. m must not be shared.
func (s *Service) publish(m *game.Match, tr *transition) {
	topic := notify.MatchTopic(m.ID)
	view := NewMatchView(m)
	s.hub.NotifyTopic(topic, notify.Notification{Kind: notify.KindMatchUpdate, Data: view})

	for _, p := range m.Players {
		if p.IsBot() {
			continue
		}
		user := notify.UserID(*p.AccountID)
		if p.Alive() || p.Placement == nil {
			s.hub.Notify(user, notify.Notification{Kind: notify.KindPlayerView, Data: NewPlayerView(m, p)})
		}
	}

	for _, f := range tr.fights {
		s.report(m, f, f.A, f.B, combat.SideA)
		if !f.Padding {
			s.report(m, f, f.B, f.A, combat.SideB)
		}
	}

	for _, p := range tr.eliminated {
		if p.IsBot() {
			continue
		}
		user := notify.UserID(*p.AccountID)
		s.hub.Notify(user, notify.Notification{Kind: notify.KindPlayerView, Data: NewPlayerView(m, p)})
		s.hub.LeaveTopic(topic, user)
	}

	if m.Over() {
		s.hub.NotifyTopic(topic, notify.Notification{Kind: notify.KindGameOver, Data: view})
		s.hub.CloseTopic(topic)
	}
}

func (s *Service) report(m *game.Match, f fight, self, other *game.Player, side int) {
	if self == nil || self.IsBot() {
		return
	}
	rep := CombatReport{
		MatchID:  m.ID,
		Round:    m.Turn.Round(),
		PlayerID: self.ID,
		Side:     side,
		Result:   f.result,
	}
	if other != nil {
		id := other.ID
		rep.Opponent = &id
	}
	s.hub.Notify(notify.UserID(*self.AccountID), notify.Notification{Kind: notify.KindCombatReport, Data: rep})
}
