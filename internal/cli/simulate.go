package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/brawl/internal/harness"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Catalog string
	Filter  string // scenario name glob
	Trace   bool
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
	Trace  string   `json:"trace,omitempty"`
}

// SimulateResult holds the overall result.
type SimulateResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r SimulateResult) String() string {
	var b strings.Builder
	for _, s := range r.Scenarios {
		status := "PASS"
		if !s.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", status, s.Name, s.File)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(strings.TrimRight(e, "\n"), "\n", "\n  "))
		}
		if s.Trace != "" {
			for _, line := range strings.Split(strings.TrimRight(s.Trace, "\n"), "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	fmt.Fprintf(&b, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
	return b.String()
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario-file-or-dir>...",
		Short: "Run match scenarios",
		Long: `Run YAML match scenarios against an in-memory server.

Each scenario seats players, optionally rewrites their starting state, runs
a flow of commands and phase advances, and checks assertions on the result.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad scenario files, etc.)

Examples:
  brawl simulate ./scenarios
  brawl simulate ./scenarios/duel.yaml --trace
  brawl simulate ./scenarios --filter "bot*" --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE catalog file or directory (default: embedded)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name glob")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "include the step trace of every scenario")

	return cmd
}

func runSimulate(opts *SimulateOptions, paths []string, cmd *cobra.Command) error {
	out := opts.output(cmd)

	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return out.Fail(ExitCommandError, "E_FILTER", "invalid filter pattern", err)
		}
	}

	cat, err := loadCatalog(opts.Catalog)
	if err != nil {
		return out.Fail(ExitCommandError, "E_CATALOG", "failed to load catalog", err)
	}

	files, err := scenarioFiles(paths)
	if err != nil {
		return out.Fail(ExitCommandError, "E_PATH", "failed to find scenarios", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), slog.LevelWarn, opts.Verbose)
	result := SimulateResult{Scenarios: []ScenarioResult{}}

	for _, file := range files {
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			return out.Fail(ExitCommandError, "E_SCENARIO", fmt.Sprintf("failed to load %s", file), err)
		}
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, scenario.Name); !ok {
				continue
			}
		}

		out.Logf("running %s", scenario.Name)
		run, err := harness.Run(commandContext(cmd), scenario, harness.WithCatalog(cat), harness.WithLogger(logger))
		if err != nil {
			return out.Fail(ExitCommandError, "E_RUN", fmt.Sprintf("scenario %s could not run", scenario.Name), err)
		}

		sr := ScenarioResult{Name: scenario.Name, File: file, Pass: run.Pass, Errors: run.Errors}
		if opts.Trace {
			var b strings.Builder
			if err := run.WriteTrace(&b); err != nil {
				return err
			}
			sr.Trace = b.String()
		}
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if run.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if err := out.Result(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return exitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total), nil)
	}
	return nil
}

// scenarioFiles expands each directory into its .yaml and .yml files,
// sorted by path.
func scenarioFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(p, pattern))
			if err != nil {
				return nil, err
			}
			found = append(found, matches...)
		}
		slices.Sort(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", strings.Join(paths, ", "))
	}
	return files, nil
}
