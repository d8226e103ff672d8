package harness

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/rcx/internal/codec"
	"github.com/roach88/rcx/internal/compiler"
	"github.com/roach88/rcx/internal/engine"
	"github.com/roach88/rcx/internal/ir"
	"github.com/roach88/rcx/internal/store"
	"github.com/roach88/rcx/internal/testutil"
)

// Harness runs scenarios against a fresh engine per scenario and records
// every run in an in-memory history so it can be replayed and checked.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Build the input container from the scenario's program, hex or CUE source
//  2. Load and run it with the scenario's limits and mutation schedule
//  3. Record the run in a fresh in-memory store
//  4. Replay the stored run and verify it reproduces the same passes and output
//  5. Evaluate assertions
//
// A load failure is a valid result (outcome load_failed), not an error. Run
// returns an error only when the scenario itself cannot be prepared.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	if err := validateScenario(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.run(ctx, s)
}

func (h *Harness) run(ctx context.Context, s *Scenario) (*Result, error) {
	input, fromSource, err := buildInput(s)
	if err != nil {
		return nil, err
	}

	schedule := fromSource.Schedule
	for _, m := range s.Mutations {
		sm, err := ir.ParseScheduledMutation(m)
		if err != nil {
			return nil, err
		}
		schedule = append(schedule, sm)
	}

	maxIter := s.MaxIterations
	if maxIter == 0 {
		maxIter = fromSource.MaxIterations
	}

	ids := testutil.NewConstantRunID(s.RunID)
	opts := []engine.Option{
		engine.WithRunIDGenerator(ids),
		engine.WithLogger(h.logger),
		engine.WithMaxIterations(maxIter),
		engine.WithFingerprintWindow(s.FingerprintWindow),
		engine.WithHeapWindow(s.HeapWindow),
		engine.WithSchedule(schedule),
	}

	result := NewResult()
	res, eng, err := execute(ctx, input, opts)
	if err != nil {
		if !engine.IsLoadError(err) && !engine.IsCapacityError(err) {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		result.LoadError = err.Error()
	}
	result.RunID = ids.Generate()
	fill(result, res, eng)

	if err := h.recordAndReplay(ctx, result.RunID, input, res); err != nil {
		result.AddError(err.Error())
	}

	for _, msg := range EvaluateAssertions(result, s.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", s.Name,
		"outcome", result.Outcome,
		"iterations", result.Iterations,
		"pass", result.Pass)
	return result, nil
}

// execute mirrors engine.Execute but keeps the engine so assertions can
// inspect the final arena.
func execute(ctx context.Context, input []byte, opts []engine.Option) (*engine.Result, *engine.Engine, error) {
	eng, err := engine.Load(input, opts...)
	if err != nil {
		return &engine.Result{Outcome: ir.OutcomeLoadFailed}, nil, err
	}
	res, err := eng.Run(ctx)
	return res, eng, err
}

func fill(result *Result, res *engine.Result, eng *engine.Engine) {
	result.Outcome = res.Outcome
	if eng == nil {
		return
	}
	result.Iterations = res.Iterations
	result.Passes = res.Passes
	result.Divergences = res.Divergences
	result.Rules = eng.Rules()
	result.Heap = eng.HeapWindow()
	result.peek = eng.Peek
}

// recordAndReplay writes the run to the history, reads it back and
// re-executes it from the stored row alone.
func (h *Harness) recordAndReplay(ctx context.Context, runID string, input []byte, res *engine.Result) error {
	run := store.Run{
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
	if _, _, err := h.store.WriteRun(ctx, run, res.Passes, res.Divergences); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	rec, err := h.store.ReplayRun(ctx, runID)
	if err != nil {
		return err
	}
	_, err = engine.Replay(ctx, engine.Recorded{
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
	}, engine.WithLogger(h.logger))
	return err
}

// sourceSettings carries run parameters that a CUE source contributes.
type sourceSettings struct {
	MaxIterations int
	Schedule      []ir.ScheduledMutation
}

func buildInput(s *Scenario) ([]byte, sourceSettings, error) {
	switch {
	case s.Program != nil:
		p, err := s.Program.toProgram()
		if err != nil {
			return nil, sourceSettings{}, err
		}
		return codec.Encode(p), sourceSettings{}, nil

	case s.InputHex != "":
		b, err := hex.DecodeString(s.InputHex)
		if err != nil {
			return nil, sourceSettings{}, fmt.Errorf("input_hex: %w", err)
		}
		return b, sourceSettings{}, nil

	case s.Source != nil:
		data, err := os.ReadFile(s.sourcePath())
		if err != nil {
			return nil, sourceSettings{}, fmt.Errorf("read source: %w", err)
		}
		v := cuecontext.New().CompileBytes(data, cue.Filename(s.sourcePath()))
		if err := v.Err(); err != nil {
			return nil, sourceSettings{}, fmt.Errorf("compile source: %w", err)
		}
		pv := v.LookupPath(cue.MakePath(cue.Str("program"), cue.Str(s.Source.Program)))
		if !pv.Exists() {
			return nil, sourceSettings{}, fmt.Errorf("source %s: program %q not found", s.Source.File, s.Source.Program)
		}
		spec, err := compiler.CompileProgram(pv)
		if err != nil {
			return nil, sourceSettings{}, err
		}
		return codec.Encode(spec.Program), sourceSettings{MaxIterations: spec.MaxIterations, Schedule: spec.Schedule}, nil
	}
	return nil, sourceSettings{}, fmt.Errorf("scenario %s has no input", s.Name)
}

func (b *ProgramBlock) toProgram() (ir.Program, error) {
	p := ir.Program{Rules: make([]ir.Rule, 0, len(b.Rules))}
	for i, r := range b.Rules {
		op, err := parseOp(r.Op)
		if err != nil {
			return ir.Program{}, fmt.Errorf("program.rules[%d]: %w", i, err)
		}
		p.Rules = append(p.Rules, ir.Rule{Op: op, Addr: r.Addr})
	}

	heap, err := hex.DecodeString(b.HeapHex)
	if err != nil {
		return ir.Program{}, fmt.Errorf("program.heap_hex: %w", err)
	}
	for _, pk := range b.Poke {
		if int(pk.Addr) >= len(heap) {
			heap = append(heap, make([]byte, int(pk.Addr)+1-len(heap))...)
		}
		heap[pk.Addr] = pk.Value
	}
	p.Heap = heap
	return p, nil
}
