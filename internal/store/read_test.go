package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rcx/internal/ir"
)

func TestReadRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun("run-a", ir.OutcomeTimedOut)

	seq, _, err := s.WriteRun(ctx, run, nil, nil)
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-a")
	require.NoError(t, err)

	run.Seq = seq
	run.InputHash = ir.ContainerHash(run.Input)
	assert.Equal(t, run, got)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-c", "run-a", "run-b"} {
		_, _, err := s.WriteRun(ctx, createTestRun(id, ir.OutcomeConverged), nil, nil)
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"run-c", "run-a", "run-b"}, ids, "seq order, not id order")
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestListRunsByOutcome(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.WriteRun(ctx, createTestRun("run-1", ir.OutcomeConverged), nil, nil)
	require.NoError(t, err)
	_, _, err = s.WriteRun(ctx, createTestRun("run-2", ir.OutcomeTimedOut), nil, nil)
	require.NoError(t, err)

	runs, err := s.ListRunsByOutcome(ctx, ir.OutcomeTimedOut)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)
}

func TestListRunsByInput(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createTestRun("run-1", ir.OutcomeConverged)
	b := createTestRun("run-2", ir.OutcomeConverged)
	b.Input = a.Input
	c := createTestRun("run-3", ir.OutcomeConverged)
	for _, r := range []Run{a, b, c} {
		_, _, err := s.WriteRun(ctx, r, nil, nil)
		require.NoError(t, err)
	}

	runs, err := s.ListRunsByInput(ctx, a.Input)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
}

func TestReadPassesAndDivergences(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.WriteRun(ctx, createTestRun("run-a", ir.OutcomeConverged), testPasses(), testDivergences())
	require.NoError(t, err)

	passes, err := s.ReadPasses(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, testPasses(), passes)

	divs, err := s.ReadDivergences(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, testDivergences(), divs)

	none, err := s.ReadPasses(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}
