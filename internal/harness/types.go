package harness

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/notify"
)

// TraceEvent is the match state after one step.
type TraceEvent struct {
	Step     int
	Do       string
	Account  int64
	Skipped  bool
	Error    game.ErrorCode
	Phase    game.Phase
	Round    int
	Health   []int
	Advances int
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool

	// Trace has one event per executed step, plus the creation.
	Trace []TraceEvent

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string

	// Notified counts delivered notifications per account and kind.
	Notified map[int64]map[notify.Kind]int

	// Final is the match state after the flow.
	Final *game.Match
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Notified: make(map[int64]map[notify.Kind]int),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) countNotification(account int64, kind notify.Kind) {
	byKind, ok := r.Notified[account]
	if !ok {
		byKind = make(map[notify.Kind]int)
		r.Notified[account] = byKind
	}
	byKind[kind]++
}

// WriteTrace writes one line per trace event.
func (r *Result) WriteTrace(w io.Writer) error {
	for _, ev := range r.Trace {
		var b strings.Builder
		fmt.Fprintf(&b, "%03d %s", ev.Step, ev.Do)
		if ev.Account != 0 {
			fmt.Fprintf(&b, " account=%d", ev.Account)
		}
		if ev.Error != "" {
			fmt.Fprintf(&b, " error=%s", ev.Error)
		}
		if ev.Skipped {
			b.WriteString(" skipped")
		}
		if ev.Advances > 0 {
			fmt.Fprintf(&b, " advances=%d", ev.Advances)
		}
		health := make([]string, len(ev.Health))
		for i, h := range ev.Health {
			health[i] = strconv.Itoa(h)
		}
		fmt.Fprintf(&b, " -> %s %d health=%s\n", ev.Phase, ev.Round, strings.Join(health, ","))
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}
