package compiler

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/rcx/internal/arena"
	"github.com/roach88/rcx/internal/engine"
	"github.com/roach88/rcx/internal/graph"
	"github.com/roach88/rcx/internal/ir"
)

// Validation error codes (E100-E199). Errors mean the program or graph would
// fail to load.
const (
	// Program errors (E101-E109)
	ErrTooManyRules = "E101" // rule count exceeds rule store capacity
	ErrHeapTooLarge = "E102" // non-zero heap bytes beyond the arena

	// Graph errors (E110-E119)
	ErrTooManyMotifs      = "E110" // motif registry would overflow
	ErrTooManyProjections = "E111" // projection registry would overflow
	ErrTooManyClosures    = "E112" // closure registry would overflow
	ErrEmptyMotifLabel    = "E113" // motif label is empty
)

// Warning codes (W200-W299). Warnings describe programs that load and run
// but probably do not do what their author meant.
const (
	WarnUnknownOpcode       = "W201" // opcode outside {traverse, delta, fix}: never fires
	WarnAddrOutOfBounds     = "W202" // address outside the arena: rule degrades to a no-op
	WarnDeltaOutsideWindow  = "W203" // Delta writes where the main loop never looks
	WarnMutationIndex       = "W204" // scheduled mutation targets a missing rule
	WarnUndeclaredMotif     = "W210" // projection endpoint not listed in motifs
	WarnDanglingClosure     = "W211" // closure references a missing projection
	WarnDuplicateMotif      = "W212" // motif label listed twice (after NFC)
	WarnProjectionCycle     = "W220" // projections form a cycle
	WarnMutationAfterCapped = "W205" // scheduled mutation iteration is never reached
)

// Limits are the capacities a program or graph is checked against.
type Limits struct {
	MaxRules          int
	ArenaCapacity     int
	FingerprintWindow int
	RegistryCapacity  int
}

// DefaultLimits returns the engine and registry defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxRules:          engine.DefaultMaxRules,
		ArenaCapacity:     arena.DefaultCapacity,
		FingerprintWindow: engine.DefaultFingerprintWindow,
		RegistryCapacity:  graph.DefaultCapacity,
	}
}

// ValidationError represents a problem that would stop a load.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Warning is a non-fatal diagnostic.
type Warning struct {
	Code    string   `json:"code"`
	Field   string   `json:"field,omitempty"`
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
}

func (w Warning) String() string {
	if w.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", w.Code, w.Field, w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Code, w.Message)
}

// ValidateProgram checks a compiled program against lim. It reports every
// problem found rather than stopping at the first.
func ValidateProgram(spec *ir.ProgramSpec, lim Limits) ([]ValidationError, []Warning) {
	var (
		errs  []ValidationError
		warns []Warning
	)

	if n := len(spec.Program.Rules); n > lim.MaxRules {
		errs = append(errs, ValidationError{
			Field:   "rules",
			Message: fmt.Sprintf("%d rules exceed capacity %d", n, lim.MaxRules),
			Code:    ErrTooManyRules,
		})
	}

	if len(spec.Program.Heap) > lim.ArenaCapacity {
		for i, b := range spec.Program.Heap[lim.ArenaCapacity:] {
			if b != 0 {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("heap[%d]", lim.ArenaCapacity+i),
					Message: fmt.Sprintf("non-zero byte beyond arena capacity %d", lim.ArenaCapacity),
					Code:    ErrHeapTooLarge,
				})
				break
			}
		}
	}

	for i, r := range spec.Program.Rules {
		warns = append(warns, lintRule(r, fmt.Sprintf("rules[%d]", i), lim)...)
	}

	for i, m := range spec.Schedule {
		field := fmt.Sprintf("mutations[%d]", i)
		if m.Index >= len(spec.Program.Rules) {
			warns = append(warns, Warning{
				Code:    WarnMutationIndex,
				Field:   field + ".index",
				Message: fmt.Sprintf("index %d has no rule; the mutation will be ignored", m.Index),
			})
		}
		if spec.MaxIterations > 0 && m.Iteration >= spec.MaxIterations {
			warns = append(warns, Warning{
				Code:    WarnMutationAfterCapped,
				Field:   field + ".iteration",
				Message: fmt.Sprintf("iteration %d is at or past max_iterations %d", m.Iteration, spec.MaxIterations),
			})
		}
		warns = append(warns, lintRule(m.Rule, field, lim)...)
	}

	return errs, warns
}

func lintRule(r ir.Rule, field string, lim Limits) []Warning {
	var warns []Warning
	if !r.Op.Known() {
		warns = append(warns, Warning{
			Code:    WarnUnknownOpcode,
			Field:   field + ".op",
			Message: fmt.Sprintf("opcode %d is not traverse, delta or fix; the rule never fires", uint8(r.Op)),
		})
		return warns
	}
	if uint64(r.Addr) >= uint64(lim.ArenaCapacity) {
		warns = append(warns, Warning{
			Code:    WarnAddrOutOfBounds,
			Field:   field + ".addr",
			Message: fmt.Sprintf("address 0x%x is outside the %d-byte arena", r.Addr, lim.ArenaCapacity),
		})
		return warns
	}
	if r.Op == ir.OpDelta && uint64(r.Addr) >= uint64(lim.FingerprintWindow) {
		warns = append(warns, Warning{
			Code:    WarnDeltaOutsideWindow,
			Field:   field + ".addr",
			Message: fmt.Sprintf("delta at 0x%x is outside the fingerprint window [0, %d); the engine cannot observe it", r.Addr, lim.FingerprintWindow),
		})
	}
	return warns
}

// ValidateGraph checks a compiled graph against lim, including projection
// cycle analysis.
func ValidateGraph(spec *ir.GraphSpec, lim Limits) ([]ValidationError, []Warning) {
	var (
		errs  []ValidationError
		warns []Warning
	)

	declared := make(map[string]bool)
	for i, label := range spec.Motifs {
		key := norm.NFC.String(label)
		if strings.TrimSpace(key) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("motifs[%d]", i),
				Message: "motif label is empty",
				Code:    ErrEmptyMotifLabel,
			})
			continue
		}
		if declared[key] {
			warns = append(warns, Warning{
				Code:    WarnDuplicateMotif,
				Field:   fmt.Sprintf("motifs[%d]", i),
				Message: fmt.Sprintf("motif %q is already declared", label),
			})
		}
		declared[key] = true
	}

	// Motifs interned from projection endpoints count against the registry too.
	all := make(map[string]bool, len(declared))
	for k := range declared {
		all[k] = true
	}
	for i, p := range spec.Projections {
		for _, end := range []struct{ name, label string }{{"from", p.From}, {"to", p.To}} {
			key := norm.NFC.String(end.label)
			if !declared[key] {
				warns = append(warns, Warning{
					Code:    WarnUndeclaredMotif,
					Field:   fmt.Sprintf("projections[%d].%s", i, end.name),
					Message: fmt.Sprintf("motif %q is not declared; it will be created implicitly", end.label),
				})
			}
			all[key] = true
		}
	}

	if len(all) > lim.RegistryCapacity {
		errs = append(errs, ValidationError{
			Field:   "motifs",
			Message: fmt.Sprintf("%d distinct motifs exceed capacity %d", len(all), lim.RegistryCapacity),
			Code:    ErrTooManyMotifs,
		})
	}
	if n := len(spec.Projections); n > lim.RegistryCapacity {
		errs = append(errs, ValidationError{
			Field:   "projections",
			Message: fmt.Sprintf("%d projections exceed capacity %d", n, lim.RegistryCapacity),
			Code:    ErrTooManyProjections,
		})
	}
	closures := len(spec.Closures)
	if closures == 0 {
		closures = len(spec.Projections)
	}
	if closures > lim.RegistryCapacity {
		errs = append(errs, ValidationError{
			Field:   "closures",
			Message: fmt.Sprintf("%d closures exceed capacity %d", closures, lim.RegistryCapacity),
			Code:    ErrTooManyClosures,
		})
	}

	for i, c := range spec.Closures {
		if c.Projection >= len(spec.Projections) {
			warns = append(warns, Warning{
				Code:    WarnDanglingClosure,
				Field:   fmt.Sprintf("closures[%d].projection", i),
				Message: fmt.Sprintf("closure %q references projection %d of %d; it will never activate", c.Name, c.Projection, len(spec.Projections)),
			})
		}
	}

	warns = append(warns, AnalyzeProjectionCycles(spec)...)
	return errs, warns
}
