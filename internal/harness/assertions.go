package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/rcx/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the pass trace to help debug the failure.
type AssertionError struct {
	Type     string    // Assertion type for categorization
	Expected string    // Human-readable expected outcome
	Actual   string    // Human-readable actual outcome
	Passes   []ir.Pass // Pass trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Passes) > 0 {
		fmt.Fprintf(&buf, "\nPasses:\n")
		for _, p := range e.Passes {
			fmt.Fprintf(&buf, "  [%d] %s fixed=%d unfixed=%d\n", p.Iteration, p.Fingerprint.Short(), p.Fixed, p.Unfixed)
		}
	}
	return buf.String()
}

func fail(r *Result, typ, expected, actual string) error {
	return &AssertionError{Type: typ, Expected: expected, Actual: actual, Passes: r.Passes}
}

func assertOutcome(r *Result, a Assertion) error {
	if string(r.Outcome) == a.Outcome {
		return nil
	}
	actual := string(r.Outcome)
	if r.LoadError != "" {
		actual += " (" + r.LoadError + ")"
	}
	return fail(r, AssertOutcome, a.Outcome, actual)
}

func assertIterations(r *Result, a Assertion) error {
	if r.Iterations == *a.Count {
		return nil
	}
	return fail(r, AssertIterations, fmt.Sprintf("%d iterations", *a.Count), fmt.Sprintf("%d iterations", r.Iterations))
}

func assertDivergenceCount(r *Result, a Assertion) error {
	if len(r.Divergences) == *a.Count {
		return nil
	}
	return fail(r, AssertDivergenceCount, fmt.Sprintf("%d divergences", *a.Count), fmt.Sprintf("%d divergences", len(r.Divergences)))
}

// assertArenaByte reads the final arena. Out-of-bounds addresses read as 0,
// the same as the Traverse primitive.
func assertArenaByte(r *Result, a Assertion) error {
	if r.peek == nil {
		return fail(r, AssertArenaByte, fmt.Sprintf("arena[0x%x] = 0x%02x", *a.Addr, *a.Value), "no arena: load failed")
	}
	got := r.peek(*a.Addr)
	if got == *a.Value {
		return nil
	}
	return fail(r, AssertArenaByte, fmt.Sprintf("arena[0x%x] = 0x%02x", *a.Addr, *a.Value), fmt.Sprintf("0x%02x", got))
}

func assertRule(r *Result, a Assertion) error {
	op, err := parseOp(a.Op)
	if err != nil {
		return err
	}
	want := ir.Rule{Op: op, Addr: *a.Addr}
	if *a.Index < 0 || *a.Index >= len(r.Rules) {
		return fail(r, AssertRule, fmt.Sprintf("rules[%d] = %s", *a.Index, want), fmt.Sprintf("only %d rules", len(r.Rules)))
	}
	if got := r.Rules[*a.Index]; got != want {
		return fail(r, AssertRule, fmt.Sprintf("rules[%d] = %s", *a.Index, want), got.String())
	}
	return nil
}

func assertPass(r *Result, a Assertion) error {
	it := *a.Iteration
	if it < 0 || it >= len(r.Passes) {
		return fail(r, AssertPass, fmt.Sprintf("pass %d", it), fmt.Sprintf("only %d passes", len(r.Passes)))
	}
	p := r.Passes[it]
	if a.Fixed != nil && p.Fixed != *a.Fixed {
		return fail(r, AssertPass, fmt.Sprintf("pass %d fixed=%d", it, *a.Fixed), fmt.Sprintf("fixed=%d", p.Fixed))
	}
	if a.Unfixed != nil && p.Unfixed != *a.Unfixed {
		return fail(r, AssertPass, fmt.Sprintf("pass %d unfixed=%d", it, *a.Unfixed), fmt.Sprintf("unfixed=%d", p.Unfixed))
	}
	return nil
}

// EvaluateAssertions runs all assertions against the result and returns the
// error message of each one that failed, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertOutcome:
			err = assertOutcome(result, a)
		case AssertIterations:
			err = assertIterations(result, a)
		case AssertDivergenceCount:
			err = assertDivergenceCount(result, a)
		case AssertArenaByte:
			err = assertArenaByte(result, a)
		case AssertRule:
			err = assertRule(result, a)
		case AssertPass:
			err = assertPass(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}
