package engine

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/rcx/internal/arena"
	"github.com/roach88/rcx/internal/codec"
	"github.com/roach88/rcx/internal/ir"
)

const (
	// DefaultFingerprintWindow is the size of the arena prefix the main loop
	// fingerprints after every pass.
	DefaultFingerprintWindow = 1024

	// HeapBase is the arena address the container heap is copied to.
	HeapBase uint32 = 0
)

var tracer = otel.Tracer("github.com/roach88/rcx/internal/engine")

// Engine is one byte-level rewriting run.
//
// INVARIANTS:
//   - table[i] is always built from the rule currently stored at i
//   - the rule store never exceeds maxRules
//   - Converged and TimedOut are terminal and mutually exclusive
type Engine struct {
	arena       *arena.Arena
	rules       *ruleStore
	table       []entry
	probes      map[uint32]ir.Fingerprint
	divergences *divergenceLog
	quota       *IterationQuota
	recurrence  *recurrenceDetector
	schedule    map[int][]ir.ScheduledMutation

	state     State
	iteration int
	baseline  ir.Fingerprint
	passes    []ir.Pass
	heapLen   int

	maxIterations      int
	fingerprintWindow  int
	heapWindow         int
	maxRules           int
	arenaCapacity      int
	divergenceCapacity int

	logger *slog.Logger
	runID  string
	runGen RunIDGenerator
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxIterations sets the iteration cap. Non-positive values select
// DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// WithFingerprintWindow sets how many leading arena bytes the main loop
// fingerprints. Non-positive values select DefaultFingerprintWindow; values
// beyond the arena are clamped.
func WithFingerprintWindow(n int) Option {
	return func(e *Engine) {
		e.fingerprintWindow = n
	}
}

// WithHeapWindow sets how many arena bytes from HeapBase HeapWindow and
// Emit return. Zero keeps the loaded heap length.
func WithHeapWindow(n int) Option {
	return func(e *Engine) {
		e.heapWindow = n
	}
}

// WithMaxRules sets the rule store capacity.
func WithMaxRules(n int) Option {
	return func(e *Engine) {
		e.maxRules = n
	}
}

// WithArenaCapacity sets the arena size in bytes.
func WithArenaCapacity(n int) Option {
	return func(e *Engine) {
		e.arenaCapacity = n
	}
}

// WithDivergenceCapacity sets how many divergence records are kept.
func WithDivergenceCapacity(n int) Option {
	return func(e *Engine) {
		e.divergenceCapacity = n
	}
}

// WithSchedule registers rule rewrites applied at the start of the given
// 0-based iterations. Mutations for the same iteration apply in order.
func WithSchedule(muts []ir.ScheduledMutation) Option {
	return func(e *Engine) {
		for _, m := range muts {
			e.schedule[m.Iteration] = append(e.schedule[m.Iteration], m)
		}
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// WithRunIDGenerator sets the generator used when no run id is fixed.
// Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runGen = g
	}
}

// New builds an engine in StateLoaded from a decoded program: the arena is
// allocated and seeded with the heap at HeapBase, the rule store filled and
// the dispatch table built.
//
// Heap bytes past the end of the arena are accepted only if they are all
// zero, since the arena is zero-initialized anyway.
func New(p ir.Program, opts ...Option) (*Engine, error) {
	e := &Engine{
		probes:             make(map[uint32]ir.Fingerprint),
		schedule:           make(map[int][]ir.ScheduledMutation),
		maxRules:           DefaultMaxRules,
		arenaCapacity:      arena.DefaultCapacity,
		divergenceCapacity: DefaultDivergenceCapacity,
		logger:             slog.Default(),
		runGen:             UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runID == "" {
		e.runID = e.runGen.Generate()
	}
	if e.fingerprintWindow <= 0 {
		e.fingerprintWindow = DefaultFingerprintWindow
	}
	if e.maxRules <= 0 {
		e.maxRules = DefaultMaxRules
	}
	if e.divergenceCapacity < 0 {
		e.divergenceCapacity = 0
	}

	e.arena = arena.New(e.arenaCapacity)
	e.quota = NewIterationQuota(e.maxIterations)
	e.maxIterations = e.quota.Max()
	e.recurrence = newRecurrenceDetector()
	e.divergences = newDivergenceLog(e.divergenceCapacity, NewClock())
	e.rules = newRuleStore(e.maxRules)

	for _, r := range p.Rules {
		if _, err := e.rules.Append(r); err != nil {
			var ce *ir.CapacityError
			errors.As(err, &ce)
			re := NewCapacityError(ce)
			re.RunID = e.runID
			return nil, re
		}
	}

	stored := e.arena.Load(HeapBase, p.Heap)
	for _, b := range p.Heap[stored:] {
		if b != 0 {
			re := NewCapacityError(&ir.CapacityError{Registry: "heap", Limit: e.arena.Capacity() - int(HeapBase)})
			re.RunID = e.runID
			return nil, re
		}
	}
	e.heapLen = stored

	e.rebuildTable()
	e.state = StateLoaded

	e.logger.Debug("engine loaded",
		"run_id", e.runID,
		"rules", e.rules.Len(),
		"heap_bytes", e.heapLen,
		"max_iterations", e.maxIterations,
		"fingerprint_window", e.fingerprintWindow)
	return e, nil
}

// Load decodes a container and builds an engine from it. A decode failure
// is returned as a LOAD_FAILED RuntimeError wrapping the codec error; the
// engine never starts on a partially decoded program.
func Load(data []byte, opts ...Option) (*Engine, error) {
	p, err := codec.Decode(data)
	if err != nil {
		return nil, NewLoadError(err)
	}
	return New(p, opts...)
}

// Execute loads data and runs it to a terminal state. Load and capacity
// failures yield a Result with OutcomeLoadFailed alongside the error.
func Execute(ctx context.Context, data []byte, opts ...Option) (*Result, error) {
	e, err := Load(data, opts...)
	if err != nil {
		return &Result{Outcome: ir.OutcomeLoadFailed}, err
	}
	return e.Run(ctx)
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// RunID returns the id of this run.
func (e *Engine) RunID() string {
	return e.runID
}

// Iteration returns the current 0-based iteration counter.
func (e *Engine) Iteration() int {
	return e.iteration
}

// MaxIterations returns the effective iteration cap.
func (e *Engine) MaxIterations() int {
	return e.maxIterations
}

// FingerprintWindow returns the effective main-loop window size.
func (e *Engine) FingerprintWindow() int {
	return min(e.fingerprintWindow, e.arena.Capacity())
}

// Fingerprint digests the main-loop observation window as it is now.
func (e *Engine) Fingerprint() ir.Fingerprint {
	return ir.StateFingerprint(e.arena.View(0, e.fingerprintWindow))
}

// Step runs exactly one iteration: scheduled mutations for the current
// iteration, one dispatch of every rule in order, then the fingerprint
// comparison that decides whether the engine converged, continues, or
// timed out.
func (e *Engine) Step(ctx context.Context) (ir.Pass, error) {
	if e.state.Terminal() {
		return ir.Pass{}, NewAlreadyTerminalError(e.runID, e.state)
	}
	if e.state == StateLoaded {
		e.baseline = e.Fingerprint()
		e.recurrence.Observe(e.baseline, -1)
		e.state = StateRunning
	}

	e.applySchedule()

	pass := ir.Pass{Iteration: e.iteration}
	for i := range e.table {
		switch e.Dispatch(i) {
		case SignalFixed:
			pass.Fixed++
		case SignalUnfixed:
			pass.Unfixed++
		}
	}
	pass.Fingerprint = e.Fingerprint()
	e.passes = append(e.passes, pass)

	e.logger.Debug("pass complete",
		"run_id", e.runID,
		"iteration", pass.Iteration,
		"fingerprint", pass.Fingerprint.Short(),
		"fixed", pass.Fixed,
		"unfixed", pass.Unfixed)

	if pass.Fingerprint == e.baseline {
		e.state = StateConverged
		return pass, nil
	}

	if rec := e.recurrence.Observe(pass.Fingerprint, pass.Iteration); rec != nil {
		e.logger.Debug("state recurrence",
			"run_id", e.runID,
			"first", rec.First,
			"repeat", rec.Repeat,
			"period", rec.Period())
	}

	e.baseline = pass.Fingerprint
	e.iteration++
	if e.quota.Advance() {
		e.state = StateTimedOut
	}
	return pass, nil
}

// Run steps until the engine reaches a terminal state. Calling Run on an
// engine that already terminated returns its result again.
//
// ctx carries tracing and logging context only; the iteration cap is the
// sole bound on a run.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Run", trace.WithAttributes(
		attribute.String("rcx.run_id", e.runID),
		attribute.Int("rcx.rules", e.rules.Len()),
		attribute.Int("rcx.max_iterations", e.maxIterations),
	))
	defer span.End()

	e.logger.Info("engine starting",
		"run_id", e.runID,
		"rules", e.rules.Len(),
		"max_iterations", e.maxIterations)

	for !e.state.Terminal() {
		if _, err := e.Step(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	res := e.Result()
	span.SetAttributes(
		attribute.String("rcx.outcome", string(res.Outcome)),
		attribute.Int("rcx.iterations", res.Iterations),
		attribute.String("rcx.fingerprint", res.Fingerprint.String()),
	)

	e.logger.Info("engine stopped",
		"run_id", e.runID,
		"outcome", res.Outcome,
		"iterations", res.Iterations,
		"divergences", len(res.Divergences))
	return res, nil
}

// Rules returns a copy of the current rule store.
func (e *Engine) Rules() []ir.Rule {
	return e.rules.Snapshot()
}

// HeapWindow returns a copy of the arena bytes starting at HeapBase. The
// window is the loaded heap length unless WithHeapWindow widened it.
func (e *Engine) HeapWindow() []byte {
	n := e.heapLen
	if e.heapWindow > 0 {
		n = e.heapWindow
	}
	return e.arena.Window(HeapBase, n)
}

// Program returns the current rules and heap window.
func (e *Engine) Program() ir.Program {
	return ir.Program{Rules: e.Rules(), Heap: e.HeapWindow()}
}

// Emit encodes the current state as a container that can be fed back in.
func (e *Engine) Emit() []byte {
	return codec.Encode(e.Program())
}

// Divergences returns a copy of the divergence log.
func (e *Engine) Divergences() []ir.Divergence {
	return e.divergences.Records()
}

// Peek returns the arena byte at addr without recording a read.
func (e *Engine) Peek(addr uint32) byte {
	return e.arena.Peek(addr)
}

// LastRead returns the most recent Traverse read.
func (e *Engine) LastRead() (addr uint32, value byte, ok bool) {
	return e.arena.LastRead()
}
