package notify

import "fmt"

// UserID identifies an external account.
type UserID int64

// TopicKind distinguishes lobby topics from match topics.
type TopicKind string

const (
	TopicLobby TopicKind = "lobby"
	TopicMatch TopicKind = "match"
)

// Topic is a notification group key.
type Topic struct {
	Kind TopicKind
	ID   string
}

// LobbyTopic returns the topic for a lobby.
func LobbyTopic(id string) Topic {
	return Topic{Kind: TopicLobby, ID: id}
}

// MatchTopic returns the topic for a match.
func MatchTopic(id string) Topic {
	return Topic{Kind: TopicMatch, ID: id}
}

func (t Topic) String() string {
	return fmt.Sprintf("%s:%s", t.Kind, t.ID)
}

// Kind labels a notification payload.
type Kind string

const (
	KindNoUpdate     Kind = "no_update"
	KindMatchUpdate  Kind = "match_update"
	KindPlayerView   Kind = "player_view"
	KindCombatReport Kind = "combat_report"
	KindGameOver     Kind = "game_over"
	KindLobbyUpdate  Kind = "lobby_update"
)

// Notification is one payload delivered to a mailbox.
type Notification struct {
	Kind  Kind   `json:"kind"`
	Topic string `json:"topic,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// NoUpdate is returned by Poll when nothing arrived before the timeout.
var NoUpdate = Notification{Kind: KindNoUpdate}

// IsNoUpdate reports whether n is the poll keep-alive sentinel.
func (n Notification) IsNoUpdate() bool {
	return n.Kind == KindNoUpdate
}
