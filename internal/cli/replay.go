package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rcx/internal/engine"
	"github.com/roach88/rcx/internal/ir"
	"github.com/roach88/rcx/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string     `json:"run_id"`
	Seq           int64      `json:"seq"`
	Outcome       ir.Outcome `json:"outcome"`
	Iterations    int        `json:"iterations"`
	Divergences   int        `json:"divergences"`
	Deterministic bool       `json:"deterministic"`
	Mismatch      string     `json:"mismatch,omitempty"`

	// Skipped is set for runs whose divergence log overflowed. They are
	// not re-executed and do not fail the replay.
	Skipped bool `json:"skipped,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	Skipped          int               `json:"skipped"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run recorded runs and verify determinism",
		Long: `Re-execute runs from the run history and verify they reproduce.

Each stored input is run again with its recorded iteration cap, fingerprint
window, heap window and the rule rewrites rebuilt from its divergence log.
The outcome, iteration count, every pass fingerprint and the emitted
container must match the recording exactly.

Runs whose divergence log overflowed are reported as skipped.

Exit codes:
  0 - All runs reproduced
  1 - A replay diverged from its recording
  2 - Command error (database not found, unknown run, etc.)

Examples:
  rcx replay --db ./runs.db
  rcx replay --db ./runs.db --run 0192f0c4-...
  rcx replay --db ./runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger()

	st, err := openHistory(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var records []store.RunRecord
	if opts.RunID != "" {
		rec, err := st.ReplayRun(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load run %s", opts.RunID), err)
		}
		records = []store.RunRecord{rec}
	} else {
		records, err = st.ReplayAll(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load runs", err)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(records)),
		TotalRuns:        len(records),
		AllDeterministic: true,
	}

	for _, rec := range records {
		_, err := engine.Replay(ctx, recorded(rec), engine.WithLogger(logger))

		run := ReplayRunResult{
			RunID:         rec.Run.ID,
			Seq:           rec.Run.Seq,
			Outcome:       rec.Run.Outcome,
			Iterations:    rec.Run.Iterations,
			Divergences:   len(rec.Divergences),
			Deterministic: err == nil,
		}
		switch {
		case errors.Is(err, engine.ErrIncompleteLog):
			run.Skipped = true
			run.Mismatch = err.Error()
			result.Skipped++
			logger.Warn("replay skipped", "run_id", rec.Run.ID, "dropped", rec.Run.DivergencesDropped)
		case err != nil:
			var mismatch *engine.ReplayMismatchError
			if !errors.As(err, &mismatch) {
				return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", rec.Run.ID), err)
			}
			run.Mismatch = err.Error()
			result.AllDeterministic = false
			logger.Warn("replay diverged", "run_id", rec.Run.ID, "field", mismatch.Field)
		}
		result.Runs = append(result.Runs, run)
	}

	if opts.Format == "json" {
		if err := opts.formatter(cmd).Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, result, opts.Verbose)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged from the recorded run")
	}
	return nil
}

// openHistory opens an existing run history. Unlike store.Open it refuses
// to create a missing database.
func openHistory(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "--db is required (or set RCX_DB)")
	}
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, WrapExitError(ExitCommandError, "database not found", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) {
	w := cmd.OutOrStdout()
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}

	for _, r := range result.Runs {
		mark := "✓"
		switch {
		case r.Skipped:
			mark = "-"
		case !r.Deterministic:
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (seq %d): %s, %d pass(es)\n", mark, r.RunID, r.Seq, r.Outcome, r.Iterations)
		if verbose && r.Divergences > 0 {
			fmt.Fprintf(w, "  %d rule rewrite(s) replayed\n", r.Divergences)
		}
		if r.Mismatch != "" {
			fmt.Fprintf(w, "  %s\n", r.Mismatch)
		}
	}

	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintf(w, "✓ %d run(s) reproduced\n", result.TotalRuns-result.Skipped)
		if result.Skipped > 0 {
			fmt.Fprintf(w, "- %d run(s) skipped: divergence log incomplete\n", result.Skipped)
		}
	} else {
		fmt.Fprintln(w, "✗ Replay diverged")
	}
}
