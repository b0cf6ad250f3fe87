package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/notify"
	"github.com/roach88/brawl/internal/store"
)

// AssertionContext provides what assertions read besides the result.
type AssertionContext struct {
	Store   *store.Store
	Ctx     context.Context
	MatchID string
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		r := Result{Trace: e.Trace}
		_ = r.WriteTrace(&buf)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertPhase:
			err = assertPhase(result, a)
		case AssertPlayer:
			err = assertPlayer(result, a)
		case AssertNotified:
			err = assertNotified(result, a)
		case AssertRecords:
			err = assertRecords(result, a, actx)
		case AssertReplay:
			err = assertReplay(result, actx)
		case AssertPlacements:
			err = assertPlacements(result)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err))
		}
	}
	return errs
}

func assertPhase(result *Result, a Assertion) error {
	turn := result.Final.Turn
	if turn.Phase() != a.Phase || (a.Round != nil && turn.Round() != *a.Round) {
		expected := string(a.Phase)
		if a.Round != nil {
			expected = fmt.Sprintf("%s %d", a.Phase, *a.Round)
		}
		return &AssertionError{
			Type:     AssertPhase,
			Expected: expected,
			Actual:   fmt.Sprintf("%s %d", turn.Phase(), turn.Round()),
			Trace:    result.Trace,
		}
	}
	return nil
}

// playerFields reads the integer fields a player assertion may check.
// Placement is 0 while unset; alive is 1 or 0.
func playerFields(p *game.Player) map[string]int {
	fields := map[string]int{
		"health":     p.Health,
		"money":      p.Money,
		"experience": p.Experience,
		"level":      p.Level(),
		"units":      p.Board.Occupied(),
		"placement":  0,
		"alive":      0,
	}
	if p.Placement != nil {
		fields["placement"] = *p.Placement
	}
	if p.Alive() {
		fields["alive"] = 1
	}
	return fields
}

func assertPlayer(result *Result, a Assertion) error {
	p := result.Final.Player(a.Player)
	if p == nil {
		return fmt.Errorf("player %d not in match", a.Player)
	}
	actual := playerFields(p)

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := actual[k]
		if !ok {
			return fmt.Errorf("unknown player field %q", k)
		}
		if got != a.Expect[k] {
			return &AssertionError{
				Type:     AssertPlayer,
				Expected: fmt.Sprintf("player %d %s=%d", a.Player, k, a.Expect[k]),
				Actual:   fmt.Sprintf("player %d %s=%d", a.Player, k, got),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertNotified(result *Result, a Assertion) error {
	want := a.Count
	if want == 0 {
		want = 1
	}
	got := result.Notified[a.Account][notify.Kind(a.Kind)]
	if got < want {
		return &AssertionError{
			Type:     AssertNotified,
			Expected: fmt.Sprintf("account %d received %s at least %d times", a.Account, a.Kind, want),
			Actual:   fmt.Sprintf("%d times", got),
		}
	}
	return nil
}

func assertRecords(result *Result, a Assertion, actx *AssertionContext) error {
	records, err := actx.Store.CombatRecords(actx.Ctx, actx.MatchID)
	if err != nil {
		return err
	}
	if len(records) != a.Count {
		return &AssertionError{
			Type:     AssertRecords,
			Expected: fmt.Sprintf("%d combat records", a.Count),
			Actual:   fmt.Sprintf("%d combat records", len(records)),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertReplay(result *Result, actx *AssertionContext) error {
	records, err := actx.Store.CombatRecords(actx.Ctx, actx.MatchID)
	if err != nil {
		return err
	}
	for i := range records {
		if _, err := records[i].Replay(); err != nil {
			return err
		}
	}
	return nil
}

func assertPlacements(result *Result) error {
	n := len(result.Final.Players)
	seen := make([]bool, n+1)
	for _, p := range result.Final.Players {
		if p.Placement == nil {
			return fmt.Errorf("player %d has no placement", p.ID)
		}
		place := *p.Placement
		if place < 1 || place > n || seen[place] {
			return &AssertionError{
				Type:     AssertPlacements,
				Expected: fmt.Sprintf("distinct placements 1..%d", n),
				Actual:   fmt.Sprintf("player %d placed %d", p.ID, place),
			}
		}
		seen[place] = true
	}
	return nil
}
