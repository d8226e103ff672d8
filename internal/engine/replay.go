package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/rcx/internal/ir"
)

// Replay
//
// A run is fully determined by its input container, its options and the
// rule rewrites applied during it. The divergence log records every rewrite
// with the iteration it happened at, so the original schedule can be
// rebuilt with ir.Schedule and the run re-executed:
//
//	[input] + Schedule(divergences) -> Execute -> [result]
//
// Replay compares the re-executed result with the recorded one. Outcome,
// iteration count, every pass fingerprint and the emitted container must
// match exactly. Fingerprints are content digests and the engine never reads
// wall time or randomness, so a mismatch means the input, the options or the
// engine itself changed.
//
// A run whose divergence log overflowed cannot be rebuilt, since the dropped
// rewrites are missing from the schedule. Replay refuses such runs with
// ErrIncompleteLog instead of reporting a false divergence.

// ErrIncompleteLog is returned by Replay for runs that dropped divergence
// records.
var ErrIncompleteLog = errors.New("divergence log incomplete")

// Recorded is what a previous run left behind, as read back from storage.
type Recorded struct {
	RunID              string
	Input              []byte
	Output             []byte
	Outcome            ir.Outcome
	Iterations         int
	MaxIterations      int
	FingerprintWindow  int
	HeapWindow         int
	Passes             []ir.Pass
	Divergences        []ir.Divergence
	DivergencesDropped int
}

// ReplayMismatchError reports the first field where a replay differed.
type ReplayMismatchError struct {
	RunID string
	Field string
	Want  string
	Got   string
}

// Error implements the error interface.
func (e *ReplayMismatchError) Error() string {
	return fmt.Sprintf("replay of run %s diverged on %s: want %s, got %s", e.RunID, e.Field, e.Want, e.Got)
}

// Replay re-executes a recorded run with the schedule reconstructed from its
// divergence log and verifies the result. The replayed result is returned
// even when verification fails. Runs with dropped divergence records are not
// executed; Replay returns nil and an error wrapping ErrIncompleteLog.
func Replay(ctx context.Context, rec Recorded, opts ...Option) (*Result, error) {
	if rec.DivergencesDropped > 0 {
		return nil, fmt.Errorf("replay run %s: %d record(s) dropped: %w", rec.RunID, rec.DivergencesDropped, ErrIncompleteLog)
	}
	base := []Option{
		WithRunID(rec.RunID),
		WithMaxIterations(rec.MaxIterations),
		WithFingerprintWindow(rec.FingerprintWindow),
		WithHeapWindow(rec.HeapWindow),
		WithSchedule(ir.Schedule(rec.Divergences)),
	}
	res, err := Execute(ctx, rec.Input, append(base, opts...)...)
	if err != nil {
		if rec.Outcome == ir.OutcomeLoadFailed {
			return res, nil
		}
		return res, fmt.Errorf("replay run %s: %w", rec.RunID, err)
	}
	return res, Verify(rec, res)
}

// Verify compares a result against a recorded run.
func Verify(rec Recorded, res *Result) error {
	mismatch := func(field string, want, got any) error {
		return &ReplayMismatchError{
			RunID: rec.RunID,
			Field: field,
			Want:  fmt.Sprint(want),
			Got:   fmt.Sprint(got),
		}
	}

	if rec.Outcome != res.Outcome {
		return mismatch("outcome", rec.Outcome, res.Outcome)
	}
	if rec.Iterations != res.Iterations {
		return mismatch("iterations", rec.Iterations, res.Iterations)
	}
	if len(rec.Passes) != len(res.Passes) {
		return mismatch("pass count", len(rec.Passes), len(res.Passes))
	}
	for i := range rec.Passes {
		if rec.Passes[i] != res.Passes[i] {
			return mismatch(fmt.Sprintf("pass %d", i), rec.Passes[i].Fingerprint.Short(), res.Passes[i].Fingerprint.Short())
		}
	}
	if len(rec.Divergences) != len(res.Divergences) {
		return mismatch("divergence count", len(rec.Divergences), len(res.Divergences))
	}
	if string(rec.Output) != string(res.Output) {
		return mismatch("output", ir.ContainerHash(rec.Output), ir.ContainerHash(res.Output))
	}
	return nil
}

// Record converts a finished result into its recorded form.
func Record(input []byte, res *Result) Recorded {
	return Recorded{
		RunID:              res.RunID,
		Input:              input,
		Output:             res.Output,
		Outcome:            res.Outcome,
		Iterations:         res.Iterations,
		MaxIterations:      res.MaxIterations,
		FingerprintWindow:  res.FingerprintWindow,
		HeapWindow:         res.HeapWindow,
		Passes:             res.Passes,
		Divergences:        res.Divergences,
		DivergencesDropped: res.DivergencesDropped,
	}
}
