package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/rcx/internal/engine"
	"github.com/roach88/rcx/internal/ir"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	Jobs              int
	MaxIterations     int
	FingerprintWindow int
	Database          string

	// RunIDs allows overriding the run id generator (for testing).
	RunIDs engine.RunIDGenerator
}

// BatchResult holds per-input reports in argument order.
type BatchResult struct {
	Runs       []RunReport `json:"runs"`
	Converged  int         `json:"converged"`
	TimedOut   int         `json:"timed_out"`
	LoadFailed int         `json:"load_failed"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	return newBatchCommand(&BatchOptions{RootOptions: rootOpts})
}

// newBatchCommand builds the command around opts so tests can preset RunIDs.
func newBatchCommand(opts *BatchOptions) *cobra.Command {
	rootOpts := opts.RootOptions

	cmd := &cobra.Command{
		Use:   "batch <input>...",
		Short: "Run many containers in parallel",
		Long: `Run each input container on its own engine, up to --jobs at a time.

Engines share nothing, so results do not depend on scheduling. Reports are
printed in argument order. With --db every run is recorded once all engines
have finished.

Exit codes:
  0 - Every input converged
  1 - At least one input timed out (and none failed to load)
  2 - At least one input failed to load, or a command error`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", rootOpts.Config.Jobs, "parallel engines (0 = GOMAXPROCS)")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", rootOpts.Config.MaxIterations, "iteration cap per run")
	cmd.Flags().IntVar(&opts.FingerprintWindow, "fingerprint-window", rootOpts.Config.FingerprintWindow, "arena prefix hashed after every pass")
	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "record every run in this SQLite database")

	return cmd
}

type batchItem struct {
	input  []byte
	result *engine.Result
}

func runBatch(opts *BatchOptions, inputs []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Stdin can only be drained once.
	stdinArgs := 0
	for _, path := range inputs {
		if path == stdinPath {
			stdinArgs++
		}
	}
	if stdinArgs > 1 {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("%q may be given at most once, got %d", stdinPath, stdinArgs))
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	ids := make([]string, len(inputs))
	for i := range ids {
		ids[i] = runIDs.Generate()
	}

	items := make([]batchItem, len(inputs))
	reports := make([]RunReport, len(inputs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)
	for i, path := range inputs {
		eg.Go(func() error {
			data, err := readInput(path, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			res, runErr := engine.Execute(egCtx, data,
				engine.WithRunID(ids[i]),
				engine.WithLogger(logger),
				engine.WithMaxIterations(opts.MaxIterations),
				engine.WithFingerprintWindow(opts.FingerprintWindow),
			)
			if runErr != nil && !engine.IsLoadError(runErr) && !engine.IsCapacityError(runErr) {
				return fmt.Errorf("%s: %w", path, runErr)
			}
			items[i] = batchItem{input: data, result: res}
			reports[i] = newRunReport(ids[i], res, runErr)
			reports[i].Input = path
			logger.Debug("batch run finished", "input", path, "run_id", ids[i], "outcome", res.Outcome)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return outputCommandError(formatter, ErrCodeReadFailed, err.Error())
	}

	if opts.Database != "" {
		for i, it := range items {
			seq, err := recordRun(ctx, opts.Database, runRow(ids[i], it.input, it.result), it.result, logger)
			if err != nil {
				return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("recording run: %v", err))
			}
			reports[i].Seq = seq
		}
	}

	result := BatchResult{Runs: reports}
	exitCode := ExitSuccess
	for _, r := range reports {
		switch r.Outcome {
		case ir.OutcomeConverged:
			result.Converged++
		case ir.OutcomeTimedOut:
			result.TimedOut++
		default:
			result.LoadFailed++
		}
		exitCode = max(exitCode, ExitCodeForOutcome(r.Outcome))
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputBatchText(formatter, result)
	}

	if exitCode != ExitSuccess {
		return NewExitError(exitCode, fmt.Sprintf("%d timed out, %d failed to load", result.TimedOut, result.LoadFailed))
	}
	return nil
}

func outputBatchText(formatter *OutputFormatter, r BatchResult) {
	w := formatter.Writer
	for _, run := range r.Runs {
		switch run.Outcome {
		case ir.OutcomeConverged:
			fmt.Fprintf(w, "✓ %s: converged after %d pass(es)\n", run.Input, run.Iterations)
		case ir.OutcomeTimedOut:
			fmt.Fprintf(w, "✗ %s: timed out after %d pass(es)\n", run.Input, run.Iterations)
		default:
			fmt.Fprintf(w, "✗ %s: load failed: %s\n", run.Input, run.LoadError)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d converged, %d timed out, %d load failed\n", r.Converged, r.TimedOut, r.LoadFailed)
}
