package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rcx/internal/codec"
	"github.com/roach88/rcx/internal/ir"
)

func TestNew_Defaults(t *testing.T) {
	e := newTestEngine(t, ir.Program{})

	assert.Equal(t, StateLoaded, e.State())
	assert.Equal(t, "run-test", e.RunID())
	assert.Equal(t, DefaultMaxIterations, e.MaxIterations())
	assert.Equal(t, DefaultFingerprintWindow, e.FingerprintWindow())
	assert.Equal(t, 0, e.Iteration())
}

func TestNew_NonPositiveMaxIterationsFallsBack(t *testing.T) {
	for _, n := range []int{0, -5} {
		e := newTestEngine(t, ir.Program{}, WithMaxIterations(n))
		assert.Equal(t, DefaultMaxIterations, e.MaxIterations())
	}
}

func TestNew_FingerprintWindowClamped(t *testing.T) {
	e := newTestEngine(t, ir.Program{}, WithArenaCapacity(64), WithFingerprintWindow(4096))
	assert.Equal(t, 64, e.FingerprintWindow())
}

func TestNew_GeneratesRunID(t *testing.T) {
	e, err := New(ir.Program{}, WithLogger(discardLogger()), WithRunIDGenerator(NewFixedGenerator("gen-1")))
	require.NoError(t, err)
	assert.Equal(t, "gen-1", e.RunID())
}

func TestNew_RuleCapacity(t *testing.T) {
	rules := []ir.Rule{rule(ir.OpTraverse, 0), rule(ir.OpTraverse, 1), rule(ir.OpTraverse, 2)}

	_, err := New(ir.Program{Rules: rules}, WithMaxRules(2), WithLogger(discardLogger()))
	require.Error(t, err)
	assert.True(t, IsCapacityError(err))
	assert.ErrorIs(t, err, ir.ErrCapacityExceeded)

	var ce *ir.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "rules", ce.Registry)
	assert.Equal(t, 2, ce.Limit)

	_, err = New(ir.Program{Rules: rules[:2]}, WithMaxRules(2), WithLogger(discardLogger()))
	assert.NoError(t, err, "exactly at capacity loads")
}

func TestNew_DefaultRuleCapacity(t *testing.T) {
	rules := make([]ir.Rule, DefaultMaxRules+1)

	_, err := New(ir.Program{Rules: rules[:DefaultMaxRules]}, WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = New(ir.Program{Rules: rules}, WithLogger(discardLogger()))
	assert.True(t, IsCapacityError(err))
}

func TestNew_HeapPastArena(t *testing.T) {
	e := newTestEngine(t, ir.Program{Heap: []byte{1, 2, 3, 4, 0, 0, 0}}, WithArenaCapacity(4))
	assert.Equal(t, []byte{1, 2, 3, 4}, e.HeapWindow(), "zero overflow is dropped")

	_, err := New(ir.Program{Heap: []byte{1, 2, 3, 4, 5}}, WithArenaCapacity(4), WithLogger(discardLogger()))
	require.Error(t, err)
	var ce *ir.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "heap", ce.Registry)
}

func TestLoad_DecodeFailure(t *testing.T) {
	data := codec.Encode(ir.Program{})
	data[1] = 'Z'

	e, err := Load(data, WithLogger(discardLogger()))
	require.Error(t, err)
	assert.Nil(t, e)
	assert.True(t, IsLoadError(err))
	assert.ErrorIs(t, err, codec.ErrBadMagic)
	assert.False(t, IsCapacityError(err))
}

func TestExecute_LoadFailedOutcome(t *testing.T) {
	res, err := Execute(context.Background(), []byte{1, 2, 3}, WithLogger(discardLogger()))
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrShortInput)
	assert.Equal(t, ir.OutcomeLoadFailed, res.Outcome)
	assert.Zero(t, res.Iterations)
}

func TestRun_TraverseFixConverges(t *testing.T) {
	data := codec.Encode(ir.Program{Rules: []ir.Rule{
		rule(ir.OpTraverse, 0x3000),
		rule(ir.OpFix, 0x3000),
	}})

	res, err := Execute(context.Background(), data,
		WithMaxIterations(5), WithRunID("run-e2e"), WithLogger(discardLogger()))
	require.NoError(t, err)

	assert.Equal(t, ir.OutcomeConverged, res.Outcome)
	assert.LessOrEqual(t, res.Iterations, 5)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, "run-e2e", res.RunID)
	assert.Equal(t, []ir.Pass{{Iteration: 0, Fingerprint: res.Fingerprint, Unfixed: 1}}, res.Passes)
	assert.Nil(t, res.Recurrence)
}

func TestRun_ToggleTimesOutAtCap(t *testing.T) {
	for _, max := range []int{1, 2, 5, 17} {
		e := newTestEngine(t, ir.Program{Rules: []ir.Rule{rule(ir.OpDelta, 5)}}, WithMaxIterations(max))

		res, err := e.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, ir.OutcomeTimedOut, res.Outcome, "max=%d", max)
		assert.Equal(t, max, res.Iterations, "max=%d", max)
		assert.Equal(t, StateTimedOut, e.State())
		assert.Len(t, res.Passes, max)
	}
}

func TestRun_ToggleRecurrence(t *testing.T) {
	e := newTestEngine(t, ir.Program{Rules: []ir.Rule{rule(ir.OpDelta, 5)}}, WithMaxIterations(6))

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.Recurrence)
	assert.Equal(t, Recurrence{First: -1, Repeat: 1}, *res.Recurrence)
	assert.Equal(t, 2, res.Recurrence.Period())
	assert.Equal(t, ir.OutcomeTimedOut, res.Outcome, "a recurrence never changes the outcome")
}

func TestRun_EmptyProgramConverges(t *testing.T) {
	e := newTestEngine(t, ir.Program{})

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeConverged, res.Outcome)
	assert.Equal(t, 1, res.Iterations)
}

func TestRun_OutOfBoundsRulesStillTerminate(t *testing.T) {
	e := newTestEngine(t, ir.Program{Rules: []ir.Rule{
		rule(ir.OpDelta, 0xFFFFFFFF),
		rule(ir.OpFix, 0xFFFFFFF0),
		rule(ir.OpTraverse, 1<<20),
	}}, WithMaxIterations(3))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeConverged, res.Outcome)
	assert.Equal(t, 1, res.Passes[0].Unfixed)
}

// The main loop and Fix observe different windows, so they can disagree in
// both directions. The main loop decides the outcome.
func TestRun_FixAndMainLoopDisagree(t *testing.T) {
	t.Run("engine converged while probe unfixed", func(t *testing.T) {
		e := newTestEngine(t, ir.Program{Rules: []ir.Rule{
			rule(ir.OpDelta, 0x2000),
			rule(ir.OpFix, 0x2000),
		}}, WithMaxIterations(10))

		res, err := e.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, ir.OutcomeConverged, res.Outcome)
		assert.Equal(t, 1, res.Iterations)
		assert.Equal(t, 0, res.Passes[0].Fixed)
		assert.Equal(t, 1, res.Passes[0].Unfixed)
	})

	t.Run("probe fixed while engine times out", func(t *testing.T) {
		e := newTestEngine(t, ir.Program{Rules: []ir.Rule{
			rule(ir.OpDelta, 5),
			rule(ir.OpFix, 0x3000),
		}}, WithMaxIterations(3))

		res, err := e.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, ir.OutcomeTimedOut, res.Outcome)
		got := make([][2]int, len(res.Passes))
		for i, p := range res.Passes {
			got[i] = [2]int{p.Fixed, p.Unfixed}
		}
		assert.Equal(t, [][2]int{{0, 1}, {1, 0}, {1, 0}}, got)
	})
}

func TestRun_FingerprintWindowBoundsObservation(t *testing.T) {
	e := newTestEngine(t, ir.Program{Rules: []ir.Rule{rule(ir.OpDelta, 5)}},
		WithFingerprintWindow(4), WithMaxIterations(10))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeConverged, res.Outcome, "writes past the window are invisible")
	assert.Equal(t, byte(0x05), e.Peek(5))
}

func TestStep_StateMachine(t *testing.T) {
	e := newTestEngine(t, ir.Program{Rules: []ir.Rule{rule(ir.OpDelta, 5)}}, WithMaxIterations(2))
	ctx := context.Background()

	assert.Equal(t, StateLoaded, e.State())

	pass, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pass.Iteration)
	assert.Equal(t, StateRunning, e.State())
	assert.Equal(t, 1, e.Iteration())

	_, err = e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateTimedOut, e.State())

	_, err = e.Step(ctx)
	require.Error(t, err)
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ErrCodeAlreadyTerminal, re.Code)
}

func TestRun_AfterTerminalReturnsSameResult(t *testing.T) {
	e := newTestEngine(t, ir.Program{Rules: []ir.Rule{rule(ir.OpTraverse, 1)}})
	ctx := context.Background()

	first, err := e.Run(ctx)
	require.NoError(t, err)
	second, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEmit_SelfReproduces(t *testing.T) {
	p := ir.Program{
		Rules: []ir.Rule{rule(ir.OpDelta, 2), rule(ir.OpFix, 0)},
		Heap:  []byte{0xAA, 0xBB, 0x00, 0xCC},
	}
	e := newTestEngine(t, p, WithMaxIterations(1))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ir.OutcomeTimedOut, res.Outcome)

	assert.Equal(t, e.Emit(), res.Output)

	decoded, err := codec.Decode(res.Output)
	require.NoError(t, err)
	want := ir.Program{Rules: p.Rules, Heap: []byte{0xAA, 0xBB, 0x02, 0xCC}}
	if diff := cmp.Diff(want, decoded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("emitted program mismatch (-want +got):\n%s", diff)
	}

	// Feeding the output back in continues from the evolved state.
	next, err := Load(res.Output, WithLogger(discardLogger()), WithRunID("run-next"))
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), next.Peek(2))
}

func TestHeapWindow_Widened(t *testing.T) {
	e := newTestEngine(t, ir.Program{
		Rules: []ir.Rule{rule(ir.OpDelta, 6)},
		Heap:  []byte{1, 2},
	}, WithHeapWindow(8), WithMaxIterations(1))

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 2, 0, 0, 0, 0, 0x06, 0}, e.HeapWindow())
}

func TestRules_ReturnsCopy(t *testing.T) {
	e := newTestEngine(t, ir.Program{Rules: []ir.Rule{rule(ir.OpTraverse, 1)}})

	rules := e.Rules()
	rules[0] = rule(ir.OpDelta, 99)
	assert.Equal(t, []ir.Rule{rule(ir.OpTraverse, 1)}, e.Rules())
}

func TestState_Strings(t *testing.T) {
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "timed_out", StateTimedOut.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, ir.OutcomeConverged, StateConverged.Outcome())
	assert.Equal(t, ir.Outcome(""), StateRunning.Outcome())
	assert.True(t, StateLoadFailed.Terminal())
	assert.False(t, StateRunning.Terminal())
}
