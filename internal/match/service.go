// Package match runs matches: the phase state machine, player commands
// and publishing to the notification hub.
//
// A Service owns one room per live match. Each room has its own lock,
// held for the whole of a transition or command; rooms never share
// state. Transitions and commands work on a copy of the match, persist
// it, and only then replace the room's state, so a failed save leaves the
// match as it was and the scheduler retries on its next tick.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/roach88/brawl/internal/canon"
	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/notify"
	"github.com/roach88/brawl/internal/shop"
)

// Catalog supplies templates and the avatar pool.
type Catalog interface {
	shop.Catalog
	Avatars() []string
}

// Seat is one lobby member joining a match.
type Seat struct {
	Name string
	// AccountID is nil for a bot.
	AccountID *int64
	// Avatars is the seat's avatar pool. One entry preselects it; empty
	// means four random choices from the catalog.
	Avatars []string
}

// Lobby is the ordered list of seats a match starts from.
type Lobby struct {
	// ID is the lobby's topic id; members are told the match id and the
	// lobby topic is closed. Optional.
	ID    string
	Seats []Seat
}

type room struct {
	mu    sync.Mutex
	state *game.Match
	rng   *rand.Rand
}

func newRoom(m *game.Match) *room {
	return &room{
		state: m,
		rng:   rand.New(rand.NewPCG(m.Seed, uint64(m.Version)|1<<63)),
	}
}

// Service runs matches.
type Service struct {
	mu    sync.RWMutex
	rooms map[string]*room

	repo    Repository
	hub     *notify.Hub
	catalog Catalog
	clock   Clock
	ids     IDGenerator
	seeds   func() uint64
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithIDGenerator sets how match ids are made.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

// WithSeeds sets the source of per-match random seeds.
func WithSeeds(f func() uint64) Option {
	return func(s *Service) {
		s.seeds = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a Service.
func NewService(repo Repository, hub *notify.Hub, cat Catalog, opts ...Option) *Service {
	s := &Service{
		rooms:   make(map[string]*room),
		repo:    repo,
		hub:     hub,
		catalog: cat,
		clock:   SystemClock{},
		ids:     UUIDv7Generator{},
		seeds:   rand.Uint64,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a match from a lobby and enters Shop(0).
func (s *Service) Create(ctx context.Context, lobby Lobby) (*game.Match, error) {
	if n := len(lobby.Seats); n < 2 || n > game.MaxPlayers {
		return nil, game.Errorf(game.CodeInvalidIndex, "a match needs 2 to %d seats, got %d", game.MaxPlayers, n)
	}

	now := s.clock.Now()
	m := &game.Match{
		ID:        s.ids.Generate(),
		Seed:      s.seeds(),
		CreatedAt: now,
	}
	rng := phaseRand(m.Seed, -1)
	for i, seat := range lobby.Seats {
		id := int64(i + 1)
		name := canon.NormalizeName(seat.Name)
		if name == "" {
			name = fmt.Sprintf("Player %d", id)
		}
		p := game.NewPlayer(id, name, seat.AccountID)
		p.AvatarChoices = s.avatarChoices(seat.Avatars, rng)
		if len(p.AvatarChoices) == 1 {
			p.Avatar = p.AvatarChoices[0]
		}
		m.Players = append(m.Players, p)
	}
	s.openShop(m, 0, now)

	if err := s.repo.CreateMatch(ctx, m); err != nil {
		return nil, game.Internal(fmt.Errorf("create match: %w", err), m.ID)
	}

	s.mu.Lock()
	s.rooms[m.ID] = newRoom(m)
	s.mu.Unlock()

	s.hub.JoinTopic(notify.MatchTopic(m.ID), humans(m)...)
	if lobby.ID != "" {
		topic := notify.LobbyTopic(lobby.ID)
		s.hub.NotifyTopic(topic, notify.Notification{
			Kind: notify.KindLobbyUpdate,
			Data: LobbyStarted{LobbyID: lobby.ID, MatchID: m.ID},
		})
		s.hub.CloseTopic(topic)
	}
	s.publish(m.Clone(), &transition{})

	s.logger.Info("match created",
		"match_id", m.ID,
		"players", len(m.Players),
		"bots", len(m.Players)-len(humans(m)),
	)
	return m.Clone(), nil
}

func (s *Service) avatarChoices(pool []string, rng *rand.Rand) []string {
	if len(pool) > 0 {
		return append([]string(nil), pool[:min(len(pool), game.AvatarChoices)]...)
	}
	all := s.catalog.Avatars()
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:min(len(all), game.AvatarChoices)]
}

// room returns the live room for id, loading it from the repository on a
// cache miss.
func (s *Service) room(ctx context.Context, id string) (*room, error) {
	s.mu.RLock()
	r, ok := s.rooms[id]
	s.mu.RUnlock()
	if ok {
		return r, nil
	}

	m, err := s.repo.LoadMatch(ctx, id)
	if err != nil {
		if game.IsNotFound(err) {
			return nil, game.Errorf(game.CodeMatchNotFound, "match %s", id)
		}
		return nil, game.Internal(fmt.Errorf("load match: %w", err), id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		return r, nil
	}
	r = newRoom(m)
	if !m.Over() {
		s.rooms[id] = r
	}
	return r, nil
}

// Restore loads every unfinished match from the repository and rejoins
// the living humans to their match topics.
func (s *Service) Restore(ctx context.Context) (int, error) {
	ids, err := s.repo.ActiveMatches(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active matches: %w", err)
	}
	restored := 0
	for _, id := range ids {
		r, err := s.room(ctx, id)
		if err != nil {
			s.logger.Error("restore match", "match_id", id, "error", err)
			continue
		}
		r.mu.Lock()
		var members []notify.UserID
		for _, p := range r.state.Alive() {
			if !p.IsBot() {
				members = append(members, notify.UserID(*p.AccountID))
			}
		}
		r.mu.Unlock()
		s.hub.JoinTopic(notify.MatchTopic(id), members...)
		restored++
	}
	return restored, nil
}

// Due returns the ids of live matches whose next transition is due at now,
// in ascending order.
func (s *Service) Due(now time.Time) []string {
	s.mu.RLock()
	rooms := make(map[string]*room, len(s.rooms))
	for id, r := range s.rooms {
		rooms[id] = r
	}
	s.mu.RUnlock()

	var due []string
	for id, r := range rooms {
		r.mu.Lock()
		if !r.state.Over() && !now.Before(r.state.Turn.Due()) {
			due = append(due, id)
		}
		r.mu.Unlock()
	}
	sort.Strings(due)
	return due
}

// Advance performs the next phase transition of a match if it is due. It
// is a no-op (false, nil) before the due time, after GameOver, and when
// another writer already advanced the stored match.
func (s *Service) Advance(ctx context.Context, id string) (bool, error) {
	r, err := s.room(ctx, id)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := s.clock.Now()
	if r.state.Over() || now.Before(r.state.Turn.Due()) {
		return false, nil
	}

	next := r.state.Clone()
	tr, err := s.advanceTurn(ctx, next, now)
	if err != nil {
		return false, err
	}

	if err := s.repo.SaveMatch(ctx, next, tr.records); err != nil {
		if errors.Is(err, game.ErrStaleVersion) {
			s.logger.Info("match advanced elsewhere, reloading", "match_id", id)
			return false, s.reload(ctx, r)
		}
		s.logger.Error("persist transition",
			"match_id", id,
			"phase", next.Turn.Phase(),
			"round", next.Turn.Round(),
			"error", err,
		)
		return false, game.Internal(fmt.Errorf("save match: %w", err), id)
	}

	r.state = next
	s.logger.Info("match advanced",
		"match_id", id,
		"phase", next.Turn.Phase(),
		"round", next.Turn.Round(),
		"alive", len(next.Alive()),
	)
	s.publish(next.Clone(), tr)

	if next.Over() {
		s.mu.Lock()
		delete(s.rooms, id)
		s.mu.Unlock()
	}
	return true, nil
}

func (s *Service) reload(ctx context.Context, r *room) error {
	m, err := s.repo.LoadMatch(ctx, r.state.ID)
	if err != nil {
		return game.Internal(fmt.Errorf("reload match: %w", err), r.state.ID)
	}
	r.state = m
	return nil
}

// Match returns a copy of the current state of a match.
func (s *Service) Match(ctx context.Context, id string) (*game.Match, error) {
	r, err := s.room(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone(), nil
}

// Summary returns the public view of a match.
func (s *Service) Summary(ctx context.Context, id string) (MatchView, error) {
	m, err := s.Match(ctx, id)
	if err != nil {
		return MatchView{}, err
	}
	return NewMatchView(m), nil
}

func humans(m *game.Match) []notify.UserID {
	var out []notify.UserID
	for _, p := range m.Players {
		if !p.IsBot() {
			out = append(out, notify.UserID(*p.AccountID))
		}
	}
	return out
}
