package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rcx/internal/ir"
	"github.com/roach88/rcx/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Outcome  string // list filter
	Input    string // list runs of this container
}

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID         string     `json:"run_id"`
	Seq           int64      `json:"seq"`
	Outcome       ir.Outcome `json:"outcome"`
	Iterations    int        `json:"iterations"`
	MaxIterations int        `json:"max_iterations"`
	InputHash     string     `json:"input_hash"`
	Fingerprint   string     `json:"fingerprint,omitempty"`
	EngineVersion string     `json:"engine_version"`
}

// TracePass is one pass of a recorded run.
type TracePass struct {
	Iteration   int    `json:"iteration"`
	Fingerprint string `json:"fingerprint"`
	Fixed       int    `json:"fixed"`
	Unfixed     int    `json:"unfixed"`
	Changed     bool   `json:"changed"` // differs from the previous pass
}

// TraceDivergence is one recorded rule rewrite.
type TraceDivergence struct {
	Seq       int64  `json:"seq"`
	Iteration int    `json:"iteration"`
	Index     int    `json:"index"`
	Previous  string `json:"previous"`
	Next      string `json:"next"`
}

// TraceResult holds the complete trace of one run.
type TraceResult struct {
	Run         RunSummary        `json:"run"`
	Passes      []TracePass       `json:"passes"`
	Divergences []TraceDivergence `json:"divergences"`
}

// RunList is the listing printed when no run is selected.
type RunList struct {
	Runs    []RunSummary `json:"runs"`
	LastSeq int64        `json:"last_seq"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the passes and rule rewrites of a recorded run",
		Long: `Show a recorded run: the fingerprint after every pass, how many Fix
probes held or failed in it, and every rule rewrite with the iteration it
happened at.

Without --run, lists the recorded runs, optionally filtered by outcome or by
input container.

Examples:
  rcx trace --db ./runs.db
  rcx trace --db ./runs.db --outcome timed_out
  rcx trace --db ./runs.db --input flip.rcx
  rcx trace --db ./runs.db --run 0192f0c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "list only runs with this outcome (converged|timed_out|load_failed)")
	cmd.Flags().StringVar(&opts.Input, "input", "", "list only runs of this container (\"-\" for stdin)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	st, err := openHistory(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if v, err := st.SchemaVersion(ctx); err == nil {
		formatter.VerboseLog("run history %s, schema v%d", st.Path(), v)
	}

	if opts.RunID == "" {
		return listRuns(ctx, opts, st, formatter, cmd)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if err != nil {
		return outputCommandError(formatter, ErrCodeNotFound, err.Error())
	}
	passes, err := st.ReadPasses(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read passes", err)
	}
	divs, err := st.ReadDivergences(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read divergences", err)
	}

	result := TraceResult{
		Run:         summarize(run),
		Passes:      make([]TracePass, len(passes)),
		Divergences: make([]TraceDivergence, len(divs)),
	}
	for i, p := range passes {
		result.Passes[i] = TracePass{
			Iteration:   p.Iteration,
			Fingerprint: p.Fingerprint.String(),
			Fixed:       p.Fixed,
			Unfixed:     p.Unfixed,
			Changed:     i == 0 || p.Fingerprint != passes[i-1].Fingerprint,
		}
	}
	for i, d := range divs {
		result.Divergences[i] = TraceDivergence{
			Seq:       d.Seq,
			Iteration: d.Iteration,
			Index:     d.Index,
			Previous:  ir.RuleFromBytes(d.Previous).String(),
			Next:      ir.RuleFromBytes(d.Next).String(),
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result)
	return nil
}

func listRuns(ctx context.Context, opts *TraceOptions, st *store.Store, formatter *OutputFormatter, cmd *cobra.Command) error {
	var (
		runs []store.Run
		err  error
	)
	switch {
	case opts.Input != "":
		data, readErr := readInput(opts.Input, cmd.InOrStdin())
		if readErr != nil {
			return outputCommandError(formatter, ErrCodeReadFailed, readErr.Error())
		}
		runs, err = st.ListRunsByInput(ctx, data)
	case opts.Outcome != "":
		runs, err = st.ListRunsByOutcome(ctx, ir.Outcome(opts.Outcome))
	default:
		runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	last, err := st.GetLastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read last seq", err)
	}

	list := RunList{Runs: make([]RunSummary, len(runs)), LastSeq: last}
	for i, r := range runs {
		list.Runs[i] = summarize(r)
	}

	if formatter.JSON() {
		return formatter.Success(list)
	}

	w := formatter.Writer
	if len(list.Runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	for _, r := range list.Runs {
		fmt.Fprintf(w, "%4d  %s  %-11s %d/%d pass(es)\n", r.Seq, r.RunID, r.Outcome, r.Iterations, r.MaxIterations)
	}
	return nil
}

func summarize(r store.Run) RunSummary {
	s := RunSummary{
		RunID:         r.ID,
		Seq:           r.Seq,
		Outcome:       r.Outcome,
		Iterations:    r.Iterations,
		MaxIterations: r.MaxIterations,
		InputHash:     r.InputHash,
		EngineVersion: r.EngineVersion,
	}
	if !r.Fingerprint.IsZero() {
		s.Fingerprint = r.Fingerprint.String()
	}
	return s
}

func outputTraceText(formatter *OutputFormatter, r TraceResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (seq %d): %s after %d/%d pass(es)\n",
		r.Run.RunID, r.Run.Seq, r.Run.Outcome, r.Run.Iterations, r.Run.MaxIterations)
	fmt.Fprintf(w, "  input: %s\n", r.Run.InputHash)

	if len(r.Passes) > 0 {
		fmt.Fprintln(w, "\nPasses:")
		for _, p := range r.Passes {
			mark := "="
			if p.Changed {
				mark = "*"
			}
			fmt.Fprintf(w, "  %s %3d  %s  fixed=%d unfixed=%d\n", mark, p.Iteration, shortHex(p.Fingerprint), p.Fixed, p.Unfixed)
		}
	}

	if len(r.Divergences) > 0 {
		fmt.Fprintln(w, "\nDivergences:")
		for _, d := range r.Divergences {
			fmt.Fprintf(w, "  #%d  iteration %d  rule[%d]  %s -> %s\n", d.Seq, d.Iteration, d.Index, d.Previous, d.Next)
		}
	}
}

func shortHex(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
