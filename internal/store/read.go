package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rcx/internal/ir"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, seq, input_hash, input, output, outcome, iterations, max_iterations, fingerprint_window, fingerprint, engine_version, heap_window, divergences_dropped`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r       Run
		outcome string
		fp      string
	)
	if err := row.Scan(
		&r.ID, &r.Seq, &r.InputHash, &r.Input, &r.Output, &outcome,
		&r.Iterations, &r.MaxIterations, &r.FingerprintWindow, &fp, &r.EngineVersion,
		&r.HeapWindow, &r.DivergencesDropped,
	); err != nil {
		return Run{}, err
	}
	r.Outcome = ir.Outcome(outcome)

	f, err := unmarshalFingerprint(fp)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", r.ID, err)
	}
	r.Fingerprint = f
	return r, nil
}

// ReadRun returns a single run. Returns ErrRunNotFound if id is unknown.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns all runs ordered by seq ASC, id ASC.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC, id ASC`)
}

// ListRunsByOutcome returns runs with the given outcome, ordered by seq.
func (s *Store) ListRunsByOutcome(ctx context.Context, outcome ir.Outcome) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs WHERE outcome = ? ORDER BY seq ASC, id ASC`, string(outcome))
}

// ListRunsByInput returns runs of the same input container, ordered by seq.
func (s *Store) ListRunsByInput(ctx context.Context, input []byte) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs WHERE input_hash = ? ORDER BY seq ASC, id ASC`, ir.ContainerHash(input))
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadPasses returns the passes of a run in iteration order.
func (s *Store) ReadPasses(ctx context.Context, runID string) ([]ir.Pass, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, fingerprint, fixed, unfixed
		FROM passes
		WHERE run_id = ?
		ORDER BY iteration ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read passes %s: %w", runID, err)
	}
	defer rows.Close()

	passes := []ir.Pass{}
	for rows.Next() {
		var (
			p  ir.Pass
			fp string
		)
		if err := rows.Scan(&p.Iteration, &fp, &p.Fixed, &p.Unfixed); err != nil {
			return nil, fmt.Errorf("read passes %s: %w", runID, err)
		}
		if p.Fingerprint, err = unmarshalFingerprint(fp); err != nil {
			return nil, fmt.Errorf("read passes %s: %w", runID, err)
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read passes %s: %w", runID, err)
	}
	return passes, nil
}

// ReadDivergences returns the divergence log of a run in seq order.
func (s *Store) ReadDivergences(ctx context.Context, runID string) ([]ir.Divergence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, iteration, rule_index, previous, next
		FROM divergences
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read divergences %s: %w", runID, err)
	}
	defer rows.Close()

	divs := []ir.Divergence{}
	for rows.Next() {
		var (
			d          ir.Divergence
			prev, next []byte
		)
		if err := rows.Scan(&d.Seq, &d.Iteration, &d.Index, &prev, &next); err != nil {
			return nil, fmt.Errorf("read divergences %s: %w", runID, err)
		}
		if d.Previous, err = unmarshalRuleBytes(prev); err != nil {
			return nil, fmt.Errorf("read divergences %s: %w", runID, err)
		}
		if d.Next, err = unmarshalRuleBytes(next); err != nil {
			return nil, fmt.Errorf("read divergences %s: %w", runID, err)
		}
		divs = append(divs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read divergences %s: %w", runID, err)
	}
	return divs, nil
}

// GetLastSeq returns the highest run seq, or 0 for an empty store.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}
