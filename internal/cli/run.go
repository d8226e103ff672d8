package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rcx/internal/engine"
	"github.com/roach88/rcx/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Out               string
	MaxIterations     int
	FingerprintWindow int
	HeapWindow        int
	Mutations         []string
	Database          string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunReport is the outcome of one run as printed by run and batch.
type RunReport struct {
	Input       string             `json:"input,omitempty"`
	RunID       string             `json:"run_id"`
	Outcome     ir.Outcome         `json:"outcome"`
	Iterations  int                `json:"iterations"`
	Max         int                `json:"max_iterations"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	Passes      []ir.Pass          `json:"passes,omitempty"`
	Divergences int                `json:"divergences"`
	Recurrence  *engine.Recurrence `json:"recurrence,omitempty"`
	OutputHash  string             `json:"output_hash,omitempty"`
	Seq         int64              `json:"seq,omitempty"`
	LoadError   string             `json:"load_error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

// newRunCommand builds the command around opts so tests can preset RunIDs.
func newRunCommand(opts *RunOptions) *cobra.Command {
	rootOpts := opts.RootOptions

	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Run a container to its fixpoint",
		Long: `Load an RCX container and run passes until the fingerprinted arena window
stops changing or the iteration cap is reached.

The input is a container file, or "-" for stdin. --out writes the evolved
container (the final rules and heap window); "-" writes it to stdout, in
which case the report goes to stderr. --db records the run, its passes and
its rule rewrites so "rcx replay" can verify it later.

Mutations rewrite one rule at the start of a pass, given as
iteration:index:op:addr, e.g. --mutate 2:0:traverse:0x10.

Exit codes:
  0 - Converged
  1 - Timed out
  2 - Load failure or command error

Examples:
  rcx run flip.rcx
  rcx run flip.rcx --out evolved.rcx --db runs.db
  rcx compile ./programs | rcx run - --max-iterations 50`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "write the evolved container here (\"-\" for stdout)")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", rootOpts.Config.MaxIterations, "iteration cap (non-positive selects the default)")
	cmd.Flags().IntVar(&opts.FingerprintWindow, "fingerprint-window", rootOpts.Config.FingerprintWindow, "arena prefix hashed after every pass")
	cmd.Flags().IntVar(&opts.HeapWindow, "heap-window", 0, "bytes of arena emitted as heap (default: loaded heap length)")
	cmd.Flags().StringArrayVar(&opts.Mutations, "mutate", nil, "scheduled rule rewrite iteration:index:op:addr (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "record the run in this SQLite database")

	return cmd
}

func runEngine(opts *RunOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if opts.Out == stdinPath {
		// stdout carries the container
		formatter.Writer = formatter.GetErrWriter()
	}
	logger := opts.logger()

	schedule, err := parseMutations(opts.Mutations)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	data, err := readInput(input, cmd.InOrStdin())
	if err != nil {
		return outputCommandError(formatter, ErrCodeReadFailed, err.Error())
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	runID := runIDs.Generate()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Debug("input read", "run_id", runID, "input", input, "bytes", len(data))
	res, runErr := engine.Execute(ctx, data,
		engine.WithRunID(runID),
		engine.WithLogger(logger),
		engine.WithMaxIterations(opts.MaxIterations),
		engine.WithFingerprintWindow(opts.FingerprintWindow),
		engine.WithHeapWindow(opts.HeapWindow),
		engine.WithSchedule(schedule),
	)
	if runErr != nil && !engine.IsLoadError(runErr) && !engine.IsCapacityError(runErr) {
		return WrapExitError(ExitCommandError, "engine error", runErr)
	}

	if runErr != nil {
		logger.Warn("load failed", "run_id", runID, "input", input, "error", runErr)
	}
	report := newRunReport(runID, res, runErr)

	if opts.Database != "" {
		seq, err := recordRun(ctx, opts.Database, runRow(runID, data, res), res, logger)
		if err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("recording run: %v", err))
		}
		report.Seq = seq
	}

	if opts.Out != "" && res.Outcome != ir.OutcomeLoadFailed {
		if err := writeOutput(opts.Out, res.Output, cmd.OutOrStdout()); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, err.Error())
		}
	}

	if formatter.JSON() {
		report.Passes = res.Passes
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		outputRunText(formatter, report, opts.Out)
	}

	return outcomeError(runID, res.Outcome)
}

// parseMutations parses repeated --mutate values.
func parseMutations(values []string) ([]ir.ScheduledMutation, error) {
	out := make([]ir.ScheduledMutation, 0, len(values))
	for _, v := range values {
		m, err := ir.ParseScheduledMutation(v)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func newRunReport(runID string, res *engine.Result, runErr error) RunReport {
	report := RunReport{
		RunID:       runID,
		Outcome:     res.Outcome,
		Iterations:  res.Iterations,
		Max:         res.MaxIterations,
		Divergences: len(res.Divergences),
		Recurrence:  res.Recurrence,
	}
	if runErr != nil {
		report.LoadError = runErr.Error()
		return report
	}
	report.Fingerprint = res.Fingerprint.String()
	report.OutputHash = ir.ContainerHash(res.Output)
	return report
}

func outputRunText(formatter *OutputFormatter, r RunReport, out string) {
	w := formatter.Writer
	switch r.Outcome {
	case ir.OutcomeConverged:
		fmt.Fprintf(w, "✓ converged after %d pass(es)\n", r.Iterations)
	case ir.OutcomeTimedOut:
		fmt.Fprintf(w, "✗ timed out after %d pass(es)\n", r.Iterations)
	default:
		fmt.Fprintf(w, "✗ load failed: %s\n", r.LoadError)
	}
	fmt.Fprintf(w, "  run: %s\n", r.RunID)
	if r.Outcome == ir.OutcomeLoadFailed {
		return
	}

	fmt.Fprintf(w, "  fingerprint: %s\n", r.Fingerprint)
	if r.Divergences > 0 {
		fmt.Fprintf(w, "  divergences: %d\n", r.Divergences)
	}
	if r.Recurrence != nil {
		fmt.Fprintf(w, "  recurrence: pass %d repeats pass %d (period %d)\n",
			r.Recurrence.Repeat, r.Recurrence.First, r.Recurrence.Period())
	}
	if r.Seq > 0 {
		fmt.Fprintf(w, "  recorded: seq %d\n", r.Seq)
	}
	if out != "" && out != stdinPath {
		fmt.Fprintf(w, "Wrote container to %s\n", out)
	}
	formatter.VerboseLog("output %s", r.OutputHash)
}
