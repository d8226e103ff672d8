package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rcx/internal/engine"
	"github.com/roach88/rcx/internal/ir"
	"github.com/roach88/rcx/internal/store"
)

// runRow converts an engine result into a runs table row.
func runRow(runID string, input []byte, res *engine.Result) store.Run {
	return store.Run{
		ID:                runID,
		Input:             input,
		Output:            res.Output,
		Outcome:           res.Outcome,
		Iterations:        res.Iterations,
		MaxIterations:     res.MaxIterations,
		FingerprintWindow: res.FingerprintWindow,
		Fingerprint:       res.Fingerprint,
		EngineVersion:     ir.EngineVersion,

		HeapWindow:         res.HeapWindow,
		DivergencesDropped: res.DivergencesDropped,
	}
}

// recorded converts a stored run back into the form engine.Replay checks.
func recorded(rec store.RunRecord) engine.Recorded {
	return engine.Recorded{
		RunID:              rec.Run.ID,
		Input:              rec.Run.Input,
		Output:             rec.Run.Output,
		Outcome:            rec.Run.Outcome,
		Iterations:         rec.Run.Iterations,
		MaxIterations:      rec.Run.MaxIterations,
		FingerprintWindow:  rec.Run.FingerprintWindow,
		HeapWindow:         rec.Run.HeapWindow,
		Passes:             rec.Passes,
		Divergences:        rec.Divergences,
		DivergencesDropped: rec.Run.DivergencesDropped,
	}
}

// recordRun opens the history at path and writes one run to it.
func recordRun(ctx context.Context, path string, run store.Run, res *engine.Result, logger *slog.Logger) (int64, error) {
	st, err := store.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open run history: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	seq, inserted, err := st.WriteRun(ctx, run, res.Passes, res.Divergences)
	if err != nil {
		return 0, err
	}
	if !inserted {
		logger.Warn("run already recorded", "run_id", run.ID, "seq", seq)
	}
	return seq, nil
}
