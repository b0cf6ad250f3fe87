package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/brawl/internal/catalog"
	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/match"
	"github.com/roach88/brawl/internal/notify"
	"github.com/roach88/brawl/internal/store"
	"github.com/roach88/brawl/internal/testutil"
)

// DefaultMaxAdvances bounds advance_until_over when the step sets no max.
const DefaultMaxAdvances = 1000

// Harness is the scenario execution engine. It runs one match with a
// manual clock and fixed ids.
type Harness struct {
	store   *store.Store
	hub     *notify.Hub
	clock   *testutil.ManualClock
	catalog *catalog.Catalog
	svc     *match.Service
	logger  *slog.Logger
	matchID string

	// accounts are the human seats, drained after every step.
	accounts []int64
}

// Option configures a run.
type Option func(*Harness)

// WithCatalog runs the scenario with cat instead of the embedded catalog.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(h *Harness) {
		h.catalog = cat
	}
}

// WithLogger sets the logger. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. A
// returned error means the scenario could not be executed at all;
// failed expectations are reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		clock:   testutil.NewManualClock(testutil.Epoch),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		matchID: "scenario-" + scenario.Name,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.catalog == nil {
		if h.catalog, err = catalog.Default(); err != nil {
			return nil, err
		}
	}
	h.hub = notify.New(notify.WithLogger(h.logger))
	defer h.hub.Shutdown()
	h.svc = h.newService(scenario.Seed, h.matchID)

	result := NewResult()
	if err := h.create(ctx, scenario, result); err != nil {
		return nil, err
	}

	for i, step := range scenario.Flow {
		if err := h.execute(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Do, err)
		}
	}

	final, err := h.svc.Match(ctx, h.matchID)
	if err != nil {
		return nil, fmt.Errorf("load final state: %w", err)
	}
	result.Final = final

	actx := &AssertionContext{Store: st, Ctx: ctx, MatchID: h.matchID}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) newService(seed uint64, ids ...string) *match.Service {
	return match.NewService(h.store, h.hub, h.catalog,
		match.WithClock(h.clock),
		match.WithIDGenerator(match.NewFixedGenerator(ids...)),
		match.WithSeeds(func() uint64 { return seed }),
		match.WithLogger(h.logger),
	)
}

func (h *Harness) create(ctx context.Context, scenario *Scenario, result *Result) error {
	lobby := match.Lobby{}
	for _, seat := range scenario.Seats {
		s := match.Seat{Name: seat.Name, Avatars: seat.Avatars}
		if seat.Account != 0 {
			s.AccountID = testutil.Account(seat.Account)
			h.accounts = append(h.accounts, seat.Account)
		}
		lobby.Seats = append(lobby.Seats, s)
	}
	if _, err := h.svc.Create(ctx, lobby); err != nil {
		return fmt.Errorf("create match: %w", err)
	}

	if len(scenario.Setup) > 0 {
		for i, ps := range scenario.Setup {
			if err := h.applySetup(ctx, ps); err != nil {
				return fmt.Errorf("setup[%d]: %w", i, err)
			}
		}
		// A fresh service reads the rewritten players from the store.
		h.svc = h.newService(scenario.Seed)
	}

	return h.record(ctx, TraceEvent{Do: "create"}, result)
}

func (h *Harness) applySetup(ctx context.Context, ps PlayerSetup) error {
	m, err := h.store.LoadMatch(ctx, h.matchID)
	if err != nil {
		return err
	}
	p := m.Player(ps.Player)
	if p == nil {
		return fmt.Errorf("setup player %d: %w", ps.Player, game.ErrPlayerNotFound)
	}
	if ps.Health != nil {
		p.Health = *ps.Health
	}
	if ps.Money != nil {
		p.Money = *ps.Money
	}
	if ps.Experience != nil {
		p.Experience = *ps.Experience
	}
	if ps.ClearBoard {
		p.Board = game.Board{}
	}
	for _, slot := range ps.Board {
		tmpl, ok := h.catalog.Template(slot.Template)
		if !ok {
			return fmt.Errorf("unknown template %q", slot.Template)
		}
		c := tmpl.Offer()
		c.ID = p.NewInstanceID()
		if slot.Attack != nil {
			c.BaseAttack = *slot.Attack
		}
		if slot.Health != nil {
			c.BaseHealth = *slot.Health
		}
		c.Upgraded = slot.Upgraded
		p.Board[slot.Slot] = c
	}
	return h.store.SavePlayerState(ctx, h.matchID, m.Version, p)
}

// execute runs one flow step. Command failures are compared with the
// step's expectation; only infrastructure failures are returned.
func (h *Harness) execute(ctx context.Context, n int, step FlowStep, result *Result) error {
	ev := TraceEvent{Step: n, Do: step.Do, Account: step.Account}

	var err error
	switch step.Do {
	case StepAdvance:
		var advanced bool
		advanced, err = h.advance(ctx)
		ev.Skipped = !advanced
	case StepAdvanceUntilOver:
		ev.Advances, err = h.advanceUntilOver(ctx, step.Max, result)
		if err == nil && ev.Advances < 0 {
			result.AddError(fmt.Sprintf("step %d: match not over after %d advances", n, -ev.Advances))
			ev.Advances = -ev.Advances
		}
	default:
		err = h.command(ctx, step)
	}

	if err != nil {
		var ge *game.Error
		if !errors.As(err, &ge) || ge.Code == game.CodeInternal {
			return err
		}
		ev.Error = ge.Code
	}
	if ev.Error != step.ExpectError {
		result.AddError(fmt.Sprintf("step %d %s: expected error %q, got %q", n, step.Do, step.ExpectError, ev.Error))
	}
	return h.record(ctx, ev, result)
}

func (h *Harness) command(ctx context.Context, step FlowStep) error {
	var err error
	switch step.Do {
	case StepBuy:
		_, err = h.svc.Buy(ctx, h.matchID, step.Account, step.Shop, step.Board)
	case StepSell:
		_, err = h.svc.Sell(ctx, h.matchID, step.Account, step.Board)
	case StepReroll:
		_, err = h.svc.Reroll(ctx, h.matchID, step.Account)
	case StepUpgrade:
		_, err = h.svc.Upgrade(ctx, h.matchID, step.Account, step.Slots)
	case StepMove:
		_, err = h.svc.Move(ctx, h.matchID, step.Account, step.From, step.To)
	case StepLock:
		_, err = h.svc.SetShopLock(ctx, h.matchID, step.Account, step.Locked)
	case StepAvatar:
		_, err = h.svc.SelectAvatar(ctx, h.matchID, step.Account, step.Avatar)
	default:
		err = fmt.Errorf("unknown step %q", step.Do)
	}
	return err
}

// advance moves the clock to the match's due time and advances once.
func (h *Harness) advance(ctx context.Context) (bool, error) {
	m, err := h.svc.Match(ctx, h.matchID)
	if err != nil {
		return false, err
	}
	if due := m.Turn.Due(); due.After(h.clock.Now()) {
		h.clock.Set(due)
	}
	return h.svc.Advance(ctx, h.matchID)
}

// advanceUntilOver advances until GameOver and returns the number of
// transitions. A negative count means limit was reached first.
func (h *Harness) advanceUntilOver(ctx context.Context, limit int, result *Result) (int, error) {
	if limit <= 0 {
		limit = DefaultMaxAdvances
	}
	for n := 0; n < limit; n++ {
		m, err := h.svc.Match(ctx, h.matchID)
		if err != nil {
			return n, err
		}
		if m.Over() {
			return n, nil
		}
		if _, err := h.advance(ctx); err != nil {
			return n, err
		}
		h.drain(ctx, result)
	}
	m, err := h.svc.Match(ctx, h.matchID)
	if err != nil {
		return limit, err
	}
	if m.Over() {
		return limit, nil
	}
	return -limit, nil
}

// record drains notifications and appends the post-step state.
func (h *Harness) record(ctx context.Context, ev TraceEvent, result *Result) error {
	h.drain(ctx, result)
	m, err := h.svc.Match(ctx, h.matchID)
	if err != nil {
		return err
	}
	ev.Phase = m.Turn.Phase()
	ev.Round = m.Turn.Round()
	for _, p := range m.Players {
		ev.Health = append(ev.Health, p.Health)
	}
	result.Trace = append(result.Trace, ev)
	return nil
}

// drain empties every human mailbox, counting into result.
func (h *Harness) drain(ctx context.Context, result *Result) {
	for _, account := range h.accounts {
		for {
			n := h.hub.Poll(ctx, notify.UserID(account), 0)
			if n.IsNoUpdate() {
				break
			}
			result.countNotification(account, n.Kind)
		}
	}
}
