package match

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brawl/internal/catalog"
	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/notify"
	"github.com/roach88/brawl/internal/store"
	"github.com/roach88/brawl/internal/testutil"
)

type fixture struct {
	svc   *Service
	store *store.Store
	hub   *notify.Hub
	clock *testutil.ManualClock
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store: st,
		hub:   notify.New(),
		clock: testutil.NewManualClock(testutil.Epoch),
	}
	if len(ids) == 0 {
		ids = []string{"m1"}
	}
	f.svc = f.newService(ids...)
	return f
}

// newService builds a second service over the same store, hub and clock,
// as a restarted process would.
func (f *fixture) newService(ids ...string) *Service {
	return NewService(f.store, f.hub, catalog.MustDefault(),
		WithClock(f.clock),
		WithIDGenerator(NewFixedGenerator(ids...)),
		WithSeeds(func() uint64 { return 42 }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

// rewrite edits one stored player of m1 at the current match version.
// Services already holding m1 still see the old state.
func (f *fixture) rewrite(t *testing.T, playerID int64, edit func(p *game.Player)) {
	t.Helper()
	ctx := context.Background()
	m, err := f.store.LoadMatch(ctx, "m1")
	require.NoError(t, err)
	p := m.Player(playerID)
	require.NotNil(t, p)
	edit(p)
	require.NoError(t, f.store.SavePlayerState(ctx, "m1", m.Version, p))
}

// drain returns everything queued for user.
func (f *fixture) drain(user int64) []notify.Notification {
	var out []notify.Notification
	for {
		n := f.hub.Poll(context.Background(), notify.UserID(user), 0)
		if n.IsNoUpdate() {
			return out
		}
		out = append(out, n)
	}
}

func kinds(ns []notify.Notification) []notify.Kind {
	out := make([]notify.Kind, len(ns))
	for i, n := range ns {
		out[i] = n.Kind
	}
	return out
}

func twoHumans() Lobby {
	return Lobby{Seats: []Seat{
		{Name: "Ann", AccountID: testutil.Account(10)},
		{Name: "Bob", AccountID: testutil.Account(20)},
	}}
}

// duelMatch creates a two-human match and rewrites its boards so that
// player 1 fields a 5/5 against player 2's 1/1. The returned service is
// fresh, so it loads the rewritten state from the store.
func duelMatch(t *testing.T, bHealth int) *fixture {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, twoHumans())
	require.NoError(t, err)

	f.rewrite(t, 1, func(a *game.Player) {
		a.Board[0] = testutil.Character(a.NewInstanceID(), "titan", 5, 5)
	})
	f.rewrite(t, 2, func(b *game.Player) {
		b.Board[0] = testutil.Character(b.NewInstanceID(), "peasant", 1, 1)
		b.Health = bHealth
	})

	f.svc = f.newService()
	f.drain(10)
	f.drain(20)
	return f
}

func TestShopDuration(t *testing.T) {
	tests := []struct {
		round int
		want  time.Duration
	}{
		{0, 30 * time.Second},
		{2, 30 * time.Second},
		{4, 35 * time.Second},
		{10, 50 * time.Second},
		{100, 90 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShopDuration(tt.round), "round %d", tt.round)
	}
}

func TestCombatDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, CombatDuration(0))
	assert.Equal(t, 5*time.Second, CombatDuration(4))
	assert.Equal(t, 11*time.Second, CombatDuration(10))
	assert.Equal(t, 14*time.Second, CombatDuration(13))
}

func TestCreate_StartsAtShopZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, Lobby{Seats: []Seat{
		{Name: "  Ann   Lee ", AccountID: testutil.Account(10)},
		{Name: ""},
	}})
	require.NoError(t, err)

	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, uint64(42), m.Seed)
	assert.Equal(t, game.ShopTurn{Number: 0, DueAt: testutil.Epoch.Add(30 * time.Second)}, m.Turn)
	require.Len(t, m.Players, 2)

	human := m.Players[0]
	assert.Equal(t, int64(1), human.ID)
	assert.Equal(t, "Ann Lee", human.Name)
	assert.Equal(t, game.StartingHealth, human.Health)
	assert.Equal(t, 2, human.Money)
	assert.Equal(t, game.StartingExperience, human.Experience)
	assert.Len(t, human.AvatarChoices, game.AvatarChoices)
	for i, offer := range human.Shop.Offers {
		require.NotNil(t, offer, "offer %d", i)
		assert.LessOrEqual(t, offer.Cost, human.Level())
	}

	bot := m.Players[1]
	assert.Equal(t, "Player 2", bot.Name)
	assert.True(t, bot.IsBot())
	assert.NotEmpty(t, bot.Avatar)

	stored, err := f.store.LoadMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, m.Players, stored.Players)

	assert.Equal(t, []notify.UserID{10}, f.hub.Members(notify.MatchTopic("m1")))
	assert.Equal(t, []notify.Kind{notify.KindMatchUpdate, notify.KindPlayerView}, kinds(f.drain(10)))
}

func TestCreate_PresetAvatar(t *testing.T) {
	f := newFixture(t)

	m, err := f.svc.Create(context.Background(), Lobby{Seats: []Seat{
		{Name: "a", AccountID: testutil.Account(1), Avatars: []string{"owl"}},
		{Name: "b", AccountID: testutil.Account(2)},
	}})
	require.NoError(t, err)
	assert.Equal(t, "owl", m.Players[0].Avatar)
	assert.Empty(t, m.Players[1].Avatar)
}

func TestCreate_SeatCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, Lobby{Seats: []Seat{{Name: "solo"}}})
	assert.ErrorIs(t, err, game.ErrInvalidIndex)

	seats := make([]Seat, game.MaxPlayers+1)
	_, err = f.svc.Create(ctx, Lobby{Seats: seats})
	assert.ErrorIs(t, err, game.ErrInvalidIndex)
}

func TestCreate_ClosesLobbyTopic(t *testing.T) {
	f := newFixture(t)
	lobby := notify.LobbyTopic("l1")
	f.hub.JoinTopic(lobby, 10, 20)

	lb := twoHumans()
	lb.ID = "l1"
	_, err := f.svc.Create(context.Background(), lb)
	require.NoError(t, err)

	got := f.drain(20)
	require.NotEmpty(t, got)
	assert.Equal(t, notify.KindLobbyUpdate, got[0].Kind)
	assert.Equal(t, LobbyStarted{LobbyID: "l1", MatchID: "m1"}, got[0].Data)
	assert.Empty(t, f.hub.Members(lobby))
}

func TestAdvance_WaitsUntilDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, twoHumans())
	require.NoError(t, err)

	f.clock.Advance(29 * time.Second)
	assert.Empty(t, f.svc.Due(f.clock.Now()))
	advanced, err := f.svc.Advance(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, advanced)

	f.clock.Advance(time.Second)
	assert.Equal(t, []string{"m1"}, f.svc.Due(f.clock.Now()))
	advanced, err = f.svc.Advance(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, advanced)

	m, err := f.svc.Match(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, game.PhaseCombat, m.Turn.Phase())
	assert.Equal(t, 1, m.Turn.Round())
	assert.Equal(t, int64(2), m.Version)
}

func TestAdvance_UnknownMatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Advance(context.Background(), "nope")
	assert.ErrorIs(t, err, game.ErrMatchNotFound)
}

func TestAdvance_CombatThenShop(t *testing.T) {
	f := duelMatch(t, game.StartingHealth)
	ctx := context.Background()

	f.clock.Advance(ShopDuration(0))
	advanced, err := f.svc.Advance(ctx, "m1")
	require.NoError(t, err)
	require.True(t, advanced)

	m, err := f.svc.Match(ctx, "m1")
	require.NoError(t, err)
	// The 5/5 kills the 1/1 and survives: one survivor, one damage.
	assert.Equal(t, game.StartingHealth, m.Player(1).Health)
	assert.Equal(t, game.StartingHealth-1, m.Player(2).Health)
	ct, ok := m.Turn.(game.CombatTurn)
	require.True(t, ok)
	assert.Equal(t, 1, ct.Number)

	records, err := f.store.CombatRecords(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].PlayerA)
	assert.Equal(t, int64(2), records[0].PlayerB)
	assert.Equal(t, 1, records[0].Damage)
	_, err = records[0].Replay()
	assert.NoError(t, err)

	got := f.drain(20)
	assert.Equal(t, []notify.Kind{notify.KindMatchUpdate, notify.KindPlayerView, notify.KindCombatReport}, kinds(got))
	report := got[2].Data.(CombatReport)
	assert.Equal(t, int64(2), report.PlayerID)
	require.NotNil(t, report.Opponent)
	assert.Equal(t, int64(1), *report.Opponent)
	assert.Equal(t, 1, report.Side)

	f.clock.Advance(CombatDuration(records[0].Actions))
	advanced, err = f.svc.Advance(ctx, "m1")
	require.NoError(t, err)
	require.True(t, advanced)

	m, err = f.svc.Match(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, game.PhaseShop, m.Turn.Phase())
	assert.Equal(t, 2, m.Turn.Round())
	for _, p := range m.Players {
		assert.Equal(t, game.StartingExperience+1, p.Experience)
		assert.Equal(t, 3, p.Money)
	}
}

func TestAdvance_EliminationAndGameOver(t *testing.T) {
	f := duelMatch(t, 1)
	ctx := context.Background()

	f.clock.Advance(ShopDuration(0))
	_, err := f.svc.Advance(ctx, "m1")
	require.NoError(t, err)

	m, err := f.svc.Match(ctx, "m1")
	require.NoError(t, err)
	loser := m.Player(2)
	assert.Equal(t, 0, loser.Health)
	require.NotNil(t, loser.Placement)
	assert.Equal(t, 2, *loser.Placement)
	assert.Equal(t, []notify.UserID{10}, f.hub.Members(notify.MatchTopic("m1")))

	// Eliminated players cannot act.
	_, err = f.svc.Reroll(ctx, "m1", 20)
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)

	f.drain(10)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Advance(ctx, "m1")
	require.NoError(t, err)

	m, err = f.svc.Match(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, game.GameOver{Number: 2}, m.Turn)
	require.NotNil(t, m.Player(1).Placement)
	assert.Equal(t, 1, *m.Player(1).Placement)

	got := kinds(f.drain(10))
	assert.Contains(t, got, notify.KindGameOver)
	assert.Empty(t, f.hub.Members(notify.MatchTopic("m1")))

	active, err := f.store.ActiveMatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	f.clock.Advance(time.Hour)
	advanced, err := f.svc.Advance(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, advanced)

	_, err = f.svc.Reroll(ctx, "m1", 10)
	assert.ErrorIs(t, err, game.ErrMatchNotFound)
}

func TestAdvance_StaleVersionReloads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, twoHumans())
	require.NoError(t, err)

	// A second process advances the match first.
	other := f.newService()
	f.clock.Advance(ShopDuration(0))
	advanced, err := other.Advance(ctx, "m1")
	require.NoError(t, err)
	require.True(t, advanced)

	advanced, err = f.svc.Advance(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, advanced)

	m, err := f.svc.Match(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, game.PhaseCombat, m.Turn.Phase())
	assert.Equal(t, int64(2), m.Version)
}

func TestCommand_StaleVersionReruns(t *testing.T) {
	f := duelMatch(t, game.StartingHealth)
	ctx := context.Background()

	// Load the room while it is still in the shop phase.
	_, err := f.svc.Match(ctx, "m1")
	require.NoError(t, err)

	other := f.newService()
	f.clock.Advance(ShopDuration(0))
	advanced, err := other.Advance(ctx, "m1")
	require.NoError(t, err)
	require.True(t, advanced)

	view, err := f.svc.SetShopLock(ctx, "m1", 20, true)
	require.NoError(t, err)
	assert.True(t, view.Shop.Locked)
	assert.Equal(t, game.StartingHealth-1, view.Health)

	stored, err := f.store.LoadMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, game.PhaseCombat, stored.Turn.Phase())
	assert.Equal(t, game.StartingHealth-1, stored.Player(2).Health)
	assert.True(t, stored.Player(2).Shop.Locked)

	// The service now holds the stored version and keeps writing.
	m, err := f.svc.Match(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, stored.Version, m.Version)
	_, err = f.svc.SetShopLock(ctx, "m1", 20, false)
	require.NoError(t, err)
}

func TestAdvance_NoSurvivorsEndsMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, twoHumans())
	require.NoError(t, err)

	f.clock.Advance(ShopDuration(0))
	advanced, err := f.svc.Advance(ctx, "m1")
	require.NoError(t, err)
	require.True(t, advanced)

	f.rewrite(t, 1, func(p *game.Player) { p.Health = 0 })
	f.rewrite(t, 2, func(p *game.Player) { p.Health = -3 })
	f.svc = f.newService()

	f.clock.Advance(time.Minute)
	advanced, err = f.svc.Advance(ctx, "m1")
	require.NoError(t, err)
	require.True(t, advanced)

	m, err := f.svc.Match(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, game.GameOver{Number: 2}, m.Turn)
	// Nobody survived, so every seat is ranked among the newly dead.
	for _, p := range m.Players {
		require.NotNil(t, p.Placement, "player %d", p.ID)
	}
	assert.Equal(t, 1, *m.Player(1).Placement)
	assert.Equal(t, 2, *m.Player(2).Placement)
	assert.Empty(t, f.hub.Members(notify.MatchTopic("m1")))

	active, err := f.store.ActiveMatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRestore_RejoinsTopics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, twoHumans())
	require.NoError(t, err)
	f.hub.CloseTopic(notify.MatchTopic("m1"))

	svc := f.newService()
	n, err := svc.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []notify.UserID{10, 20}, f.hub.Members(notify.MatchTopic("m1")))

	f.clock.Advance(ShopDuration(0))
	assert.Equal(t, []string{"m1"}, svc.Due(f.clock.Now()))
}
