package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rcx/internal/ir"
)

// Run is one row of the runs table.
type Run struct {
	ID                string
	Seq               int64
	InputHash         string
	Input             []byte
	Output            []byte
	Outcome           ir.Outcome
	Iterations        int
	MaxIterations     int
	FingerprintWindow int
	Fingerprint       ir.Fingerprint
	EngineVersion     string

	// HeapWindow is the heap window Output was emitted with, zero for the
	// loaded heap length.
	HeapWindow int

	// DivergencesDropped counts rewrites missing from the divergences table.
	DivergencesDropped int
}

// WriteRun records a run with its passes and divergences in one
// transaction and returns the seq it was stamped with.
//
// The seq is allocated as one past the highest stored seq, inside the same
// transaction. Writing a run id that already exists is a no-op: inserted is
// false and the stored seq is returned. run.Seq and run.InputHash are
// ignored; the store computes both.
func (s *Store) WriteRun(ctx context.Context, run Run, passes []ir.Pass, divs []ir.Divergence) (seq int64, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("write run %s: begin tx: %w", run.ID, err)
	}
	defer tx.Rollback() // No-op if committed

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&existing)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, false, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return 0, false, fmt.Errorf("write run %s: allocate seq: %w", run.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, input_hash, input, output, outcome, iterations, max_iterations, fingerprint_window, fingerprint, engine_version, heap_window, divergences_dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		seq,
		ir.ContainerHash(run.Input),
		nonNil(run.Input),
		nonNil(run.Output),
		string(run.Outcome),
		run.Iterations,
		run.MaxIterations,
		run.FingerprintWindow,
		marshalFingerprint(run.Fingerprint),
		run.EngineVersion,
		run.HeapWindow,
		run.DivergencesDropped,
	)
	if err != nil {
		return 0, false, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	for _, p := range passes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO passes (run_id, iteration, fingerprint, fixed, unfixed)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, iteration) DO NOTHING
		`, run.ID, p.Iteration, marshalFingerprint(p.Fingerprint), p.Fixed, p.Unfixed)
		if err != nil {
			return 0, false, fmt.Errorf("write run %s: pass %d: %w", run.ID, p.Iteration, err)
		}
	}

	for _, d := range divs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO divergences (run_id, seq, iteration, rule_index, previous, next)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, seq) DO NOTHING
		`, run.ID, d.Seq, d.Iteration, d.Index, d.Previous[:], d.Next[:])
		if err != nil {
			return 0, false, fmt.Errorf("write run %s: divergence %d: %w", run.ID, d.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("write run %s: commit: %w", run.ID, err)
	}
	return seq, true, nil
}
