package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/brawl/internal/combat"
	"github.com/roach88/brawl/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	MatchID  string // optional - specific match only
	Log      bool   // print the action log of every fight
}

// ReplayFight is the replay outcome of one stored fight.
type ReplayFight struct {
	Round   int    `json:"round"`
	PlayerA int64  `json:"player_a"`
	PlayerB int64  `json:"player_b"`
	Padding bool   `json:"padding,omitempty"`
	Winner  int    `json:"winner"`
	Damage  int    `json:"damage"`
	Match   bool   `json:"match"`
	Log     string `json:"log,omitempty"`
}

// ReplayMatchResult holds the replay result for a single match.
type ReplayMatchResult struct {
	MatchID       string        `json:"match_id"`
	Phase         string        `json:"phase"`
	Round         int           `json:"round"`
	Fights        []ReplayFight `json:"fights"`
	Deterministic bool          `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Matches          []ReplayMatchResult `json:"matches"`
	TotalFights      int                 `json:"total_fights"`
	AllDeterministic bool                `json:"all_deterministic"`
}

func (r ReplayResult) String() string {
	if len(r.Matches) == 0 {
		return "No matches found in database.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Replay Summary: %d match(es), %d fight(s)\n\n", len(r.Matches), r.TotalFights)
	for _, m := range r.Matches {
		status := "✓"
		if !m.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(&b, "%s Match: %s (%s %d)\n", status, m.MatchID, m.Phase, m.Round)
		for _, f := range m.Fights {
			mark := "ok"
			if !f.Match {
				mark = "MISMATCH"
			}
			fmt.Fprintf(&b, "  round %d: %d vs %d winner=%d damage=%d %s\n", f.Round, f.PlayerA, f.PlayerB, f.Winner, f.Damage, mark)
			if f.Log != "" {
				for _, line := range strings.Split(strings.TrimRight(f.Log, "\n"), "\n") {
					fmt.Fprintf(&b, "    %s\n", line)
				}
			}
		}
	}
	b.WriteString("\n")
	if r.AllDeterministic {
		b.WriteString("All fights replay identically.\n")
	} else {
		b.WriteString("Replay mismatch detected.\n")
	}
	return b.String()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay stored fights and verify determinism",
		Long: `Replay every stored combat record and verify it resolves identically.

Each record holds both boards and the fight seed. Replaying resolves the
fight again and compares the result digest with the stored one.

Exit codes:
  0 - All fights replay identically
  1 - At least one fight resolved differently
  2 - Command error (database not found, unknown match, etc.)

Examples:
  brawl replay --db ./brawl.db
  brawl replay --db ./brawl.db --match 0190a6f2-...
  brawl replay --db ./brawl.db --match 0190a6f2-... --log
  brawl replay --db ./brawl.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.MatchID, "match", "", "replay a specific match only")
	cmd.Flags().BoolVar(&opts.Log, "log", false, "print each fight's action log")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	out := opts.output(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, "E_DATABASE", "failed to open database", err)
	}
	defer st.Close()

	summaries, err := st.ListMatches(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, "E_DATABASE", "failed to list matches", err)
	}
	if opts.MatchID != "" {
		var only []store.MatchSummary
		for _, s := range summaries {
			if s.ID == opts.MatchID {
				only = append(only, s)
			}
		}
		if len(only) == 0 {
			return out.Fail(ExitCommandError, "MATCH_NOT_FOUND", fmt.Sprintf("match %s not found", opts.MatchID), nil)
		}
		summaries = only
	}

	result := ReplayResult{Matches: []ReplayMatchResult{}, AllDeterministic: true}
	for _, s := range summaries {
		out.Logf("replaying match %s", s.ID)
		records, err := st.CombatRecords(ctx, s.ID)
		if err != nil {
			return out.Fail(ExitCommandError, "E_DATABASE", fmt.Sprintf("failed to read records of %s", s.ID), err)
		}

		mr := ReplayMatchResult{
			MatchID:       s.ID,
			Phase:         string(s.Phase),
			Round:         s.Round,
			Fights:        make([]ReplayFight, 0, len(records)),
			Deterministic: true,
		}
		for _, rec := range records {
			fight, err := replayFight(rec, opts.Log)
			if err != nil {
				return out.Fail(ExitCommandError, "E_REPLAY", fmt.Sprintf("failed to replay %s round %d", s.ID, rec.Round), err)
			}
			if !fight.Match {
				mr.Deterministic = false
				result.AllDeterministic = false
			}
			mr.Fights = append(mr.Fights, fight)
		}
		result.TotalFights += len(mr.Fights)
		result.Matches = append(result.Matches, mr)
	}

	if !result.AllDeterministic {
		if err := out.Report("E_DETERMINISM", "replay mismatch", result); err != nil {
			return err
		}
		if !out.JSON {
			if err := out.Result(result); err != nil {
				return err
			}
		}
		return exitError(ExitFailure, "replay mismatch", nil)
	}
	return out.Result(result)
}

// replayFight resolves rec again. A digest mismatch is reported in the
// result, not as an error.
func replayFight(rec combat.Record, withLog bool) (ReplayFight, error) {
	fight := ReplayFight{
		Round:   rec.Round,
		PlayerA: rec.PlayerA,
		PlayerB: rec.PlayerB,
		Padding: rec.Padding,
		Winner:  rec.Winner,
		Damage:  rec.Damage,
		Match:   true,
	}

	res, err := rec.Replay()
	if errors.Is(err, combat.ErrReplayMismatch) {
		fight.Match = false
	} else if err != nil {
		return fight, err
	}

	if withLog {
		var b strings.Builder
		if err := res.WriteLog(&b); err != nil {
			return fight, err
		}
		fight.Log = b.String()
	}
	return fight, nil
}
