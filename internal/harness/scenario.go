package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rcx/internal/compiler"
	"github.com/roach88/rcx/internal/ir"
)

// Scenario defines a conformance scenario: one program, the run parameters,
// and assertions on the run's outcome and final state.
//
// Exactly one input form is allowed: an inline program, a raw container in
// hex, or a program in a CUE file.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID fixes the run id for deterministic output. Defaults to "run-test".
	RunID string `yaml:"run_id,omitempty"`

	Program  *ProgramBlock `yaml:"program,omitempty"`
	InputHex string        `yaml:"input_hex,omitempty"`
	Source   *SourceRef    `yaml:"source,omitempty"`

	MaxIterations     int `yaml:"max_iterations,omitempty"`
	FingerprintWindow int `yaml:"fingerprint_window,omitempty"`
	HeapWindow        int `yaml:"heap_window,omitempty"`

	// Mutations are "iteration:index:op:addr" rule rewrites.
	Mutations []string `yaml:"mutations,omitempty"`

	// Assertions validate the finished run. At least one is required.
	Assertions []Assertion `yaml:"assertions"`

	// dir is the directory the scenario was loaded from; Source paths
	// resolve against it.
	dir string
}

// ProgramBlock is an inline program.
type ProgramBlock struct {
	Rules   []RuleStep `yaml:"rules"`
	HeapHex string     `yaml:"heap_hex,omitempty"`
	Poke    []Poke     `yaml:"poke,omitempty"`
}

// RuleStep is one rule. Op is an opcode name or a raw byte ("7", "0x7f").
type RuleStep struct {
	Op   string `yaml:"op"`
	Addr uint32 `yaml:"addr"`
}

// Poke sets one heap byte after HeapHex is laid out.
type Poke struct {
	Addr  uint32 `yaml:"addr"`
	Value uint8  `yaml:"value"`
}

// SourceRef points at a CUE program: program.<Program> in File.
type SourceRef struct {
	File    string `yaml:"file"`
	Program string `yaml:"program"`
}

// Assertion validates one aspect of a finished run.
type Assertion struct {
	// Type selects the check:
	// - "outcome": Outcome must equal the run's terminal outcome
	// - "iterations": Count must equal the number of passes
	// - "arena_byte": arena[Addr] must equal Value
	// - "divergence_count": Count must equal the divergence log length
	// - "rule": rule Index must be (Op, Addr)
	// - "pass": pass Iteration must report Fixed / Unfixed probes
	Type string `yaml:"type"`

	Outcome   string  `yaml:"outcome,omitempty"`
	Count     *int    `yaml:"count,omitempty"`
	Addr      *uint32 `yaml:"addr,omitempty"`
	Value     *uint8  `yaml:"value,omitempty"`
	Index     *int    `yaml:"index,omitempty"`
	Op        string  `yaml:"op,omitempty"`
	Iteration *int    `yaml:"iteration,omitempty"`
	Fixed     *int    `yaml:"fixed,omitempty"`
	Unfixed   *int    `yaml:"unfixed,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome         = "outcome"
	AssertIterations      = "iterations"
	AssertArenaByte       = "arena_byte"
	AssertDivergenceCount = "divergence_count"
	AssertRule            = "rule"
	AssertPass            = "pass"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(path)

	if s.Source != nil {
		if _, err := os.Stat(s.sourcePath()); err != nil {
			return nil, fmt.Errorf("invalid scenario: source file: %w", err)
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML. Source paths resolve against the
// working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadScenarios loads every *.yaml / *.yml file in dir whose base name
// matches filter (a filepath.Match pattern; empty matches all), sorted by
// file name.
func LoadScenarios(dir, filter string) ([]*Scenario, error) {
	var paths []string
	for _, ext := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, ext))
		if err != nil {
			return nil, err
		}
		paths = append(paths, m...)
	}
	sort.Strings(paths)

	var out []*Scenario
	for _, p := range paths {
		if filter != "" {
			ok, err := filepath.Match(filter, filepath.Base(p))
			if err != nil {
				return nil, fmt.Errorf("bad filter %q: %w", filter, err)
			}
			if !ok {
				continue
			}
		}
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (s *Scenario) sourcePath() string {
	if filepath.IsAbs(s.Source.File) || s.dir == "" {
		return s.Source.File
	}
	return filepath.Join(s.dir, s.Source.File)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	inputs := 0
	if s.Program != nil {
		inputs++
	}
	if s.InputHex != "" {
		inputs++
	}
	if s.Source != nil {
		inputs++
	}
	if inputs != 1 {
		return fmt.Errorf("exactly one of program, input_hex or source is required")
	}

	if s.Program != nil {
		for i, r := range s.Program.Rules {
			if _, err := parseOp(r.Op); err != nil {
				return fmt.Errorf("program.rules[%d]: %w", i, err)
			}
		}
		if _, err := hex.DecodeString(s.Program.HeapHex); err != nil {
			return fmt.Errorf("program.heap_hex: %w", err)
		}
		for i, pk := range s.Program.Poke {
			if pk.Addr > compiler.MaxPokeAddr {
				return fmt.Errorf("program.poke[%d]: addr 0x%x exceeds 0x%x", i, pk.Addr, compiler.MaxPokeAddr)
			}
		}
	}
	if s.InputHex != "" {
		if _, err := hex.DecodeString(s.InputHex); err != nil {
			return fmt.Errorf("input_hex: %w", err)
		}
	}
	if s.Source != nil && (s.Source.File == "" || s.Source.Program == "") {
		return fmt.Errorf("source: file and program are required")
	}

	if s.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative")
	}
	if s.FingerprintWindow < 0 {
		return fmt.Errorf("fingerprint_window must be non-negative")
	}
	if s.HeapWindow < 0 {
		return fmt.Errorf("heap_window must be non-negative")
	}
	for i, m := range s.Mutations {
		if _, err := ir.ParseScheduledMutation(m); err != nil {
			return fmt.Errorf("mutations[%d]: %w", i, err)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutcome:
		switch ir.Outcome(a.Outcome) {
		case ir.OutcomeConverged, ir.OutcomeTimedOut, ir.OutcomeLoadFailed:
		default:
			return fmt.Errorf("assertions[%d]: outcome must be converged, timed_out or load_failed, got %q", index, a.Outcome)
		}
	case AssertIterations, AssertDivergenceCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertArenaByte:
		if a.Addr == nil || a.Value == nil {
			return fmt.Errorf("assertions[%d]: addr and value are required for arena_byte", index)
		}
	case AssertRule:
		if a.Index == nil || a.Addr == nil || a.Op == "" {
			return fmt.Errorf("assertions[%d]: index, op and addr are required for rule", index)
		}
		if _, err := parseOp(a.Op); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertPass:
		if a.Iteration == nil {
			return fmt.Errorf("assertions[%d]: iteration is required for pass", index)
		}
		if a.Fixed == nil && a.Unfixed == nil {
			return fmt.Errorf("assertions[%d]: fixed or unfixed is required for pass", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// parseOp accepts an opcode name or a raw byte literal.
func parseOp(s string) (ir.Opcode, error) {
	if op, err := ir.ParseOpcode(s); err == nil {
		return op, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("op %q is neither an opcode name nor a byte", s)
	}
	return ir.Opcode(n), nil
}
