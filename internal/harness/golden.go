package harness

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rcx/internal/ir"
)

// GoldenDir is where golden trace files live, relative to the package under
// test.
const GoldenDir = "testdata/golden"

// ErrGoldenMismatch is returned by CompareGolden when the snapshot differs.
var ErrGoldenMismatch = errors.New("golden mismatch")

// Snapshot renders the parts of a result that are stable across engine
// versions as canonical JSON: outcome, per-pass probe counts, divergence
// records, final rules and heap. Fingerprints are left out so a golden file
// can be written by hand.
func Snapshot(name string, r *Result) ([]byte, error) {
	passes := make([]any, len(r.Passes))
	for i, p := range r.Passes {
		passes[i] = map[string]any{
			"iteration": p.Iteration,
			"fixed":     p.Fixed,
			"unfixed":   p.Unfixed,
		}
	}

	divs := make([]any, len(r.Divergences))
	for i, d := range r.Divergences {
		divs[i] = map[string]any{
			"seq":       d.Seq,
			"iteration": d.Iteration,
			"index":     d.Index,
			"previous":  hex.EncodeToString(d.Previous[:]),
			"next":      hex.EncodeToString(d.Next[:]),
		}
	}

	rules := make([]any, len(r.Rules))
	for i, rule := range r.Rules {
		rules[i] = rule.String()
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario":    name,
		"run_id":      r.RunID,
		"outcome":     string(r.Outcome),
		"iterations":  r.Iterations,
		"passes":      passes,
		"divergences": divs,
		"rules":       rules,
		"heap":        hex.EncodeToString(r.Heap),
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), s)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, s.Name, result)
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// CompareGolden is the non-test form of AssertGolden used by `rcx test`.
// With update set it (re)writes dir/name.golden; otherwise it returns
// ErrGoldenMismatch when the file differs and os.ErrNotExist when there is
// no golden file yet.
func CompareGolden(dir, name string, result *Result, update bool) error {
	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write golden: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden: %w", err)
	}
	if !bytes.Equal(want, data) {
		return fmt.Errorf("%w: %s\nwant: %s\ngot:  %s", ErrGoldenMismatch, path, want, data)
	}
	return nil
}
