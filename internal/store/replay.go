package store

import (
	"context"
	"fmt"

	"github.com/roach88/rcx/internal/ir"
)

// RunRecord is a stored run together with its passes and divergences.
type RunRecord struct {
	Run         Run
	Passes      []ir.Pass
	Divergences []ir.Divergence

	// Schedule is the mutation schedule rebuilt from Divergences. Feeding
	// it and Run.Input back into the engine reproduces the run.
	Schedule []ir.ScheduledMutation
}

// ReplayRun loads everything needed to re-execute run id.
func (s *Store) ReplayRun(ctx context.Context, id string) (RunRecord, error) {
	run, err := s.ReadRun(ctx, id)
	if err != nil {
		return RunRecord{}, fmt.Errorf("replay: %w", err)
	}
	passes, err := s.ReadPasses(ctx, id)
	if err != nil {
		return RunRecord{}, fmt.Errorf("replay: %w", err)
	}
	divs, err := s.ReadDivergences(ctx, id)
	if err != nil {
		return RunRecord{}, fmt.Errorf("replay: %w", err)
	}
	return RunRecord{
		Run:         run,
		Passes:      passes,
		Divergences: divs,
		Schedule:    ir.Schedule(divs),
	}, nil
}

// ReplayAll loads every stored run in seq order.
func (s *Store) ReplayAll(ctx context.Context) ([]RunRecord, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay all: %w", err)
	}
	out := make([]RunRecord, 0, len(runs))
	for _, r := range runs {
		rec, err := s.ReplayRun(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
