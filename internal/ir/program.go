package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Program is the decoded content of an RCX container: an ordered rule set
// and the raw heap payload that is copied into the arena at load time.
type Program struct {
	Rules []Rule `json:"rules"`
	Heap  []byte `json:"heap"`
}

// ScheduledMutation rewrites the rule at Index with Rule at the start of the
// given 0-based Iteration.
type ScheduledMutation struct {
	Iteration int  `json:"iteration"`
	Index     int  `json:"index"`
	Rule      Rule `json:"rule"`
}

// ProgramSpec is a named program compiled from source, with the run
// parameters the source asks for.
type ProgramSpec struct {
	Name    string  `json:"name"`
	Program Program `json:"program"`

	// MaxIterations is the requested iteration cap; 0 means the engine default.
	MaxIterations int `json:"max_iterations,omitempty"`

	// Schedule lists rule rewrites to apply during the run.
	Schedule []ScheduledMutation `json:"schedule,omitempty"`
}

// ParseScheduledMutation parses the "iteration:index:op:addr" form used on
// the command line, e.g. "2:0:traverse:0x3000". Numbers accept Go literal
// prefixes (0x, 0o, 0b).
func ParseScheduledMutation(s string) (ScheduledMutation, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return ScheduledMutation{}, fmt.Errorf("mutation %q: want iteration:index:op:addr", s)
	}

	iter, err := strconv.ParseUint(parts[0], 0, 31)
	if err != nil {
		return ScheduledMutation{}, fmt.Errorf("mutation %q: iteration: %w", s, err)
	}
	idx, err := strconv.ParseUint(parts[1], 0, 31)
	if err != nil {
		return ScheduledMutation{}, fmt.Errorf("mutation %q: index: %w", s, err)
	}
	op, err := ParseOpcode(parts[2])
	if err != nil {
		return ScheduledMutation{}, fmt.Errorf("mutation %q: %w", s, err)
	}
	addr, err := strconv.ParseUint(parts[3], 0, 32)
	if err != nil {
		return ScheduledMutation{}, fmt.Errorf("mutation %q: addr: %w", s, err)
	}

	return ScheduledMutation{
		Iteration: int(iter),
		Index:     int(idx),
		Rule:      Rule{Op: op, Addr: uint32(addr)},
	}, nil
}

// GraphSpec is a compiled motif/projection/closure graph.
//
// Projections and closures refer to motifs by label; the graph package
// resolves labels to registry indices.
type GraphSpec struct {
	Name        string           `json:"name"`
	Motifs      []string         `json:"motifs"`
	Projections []ProjectionSpec `json:"projections"`
	Closures    []ClosureSpec    `json:"closures"`
}

// ProjectionSpec is a directed rewrite edge between two motif labels.
type ProjectionSpec struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ClosureSpec names one projection by its position in GraphSpec.Projections.
type ClosureSpec struct {
	Name       string `json:"name"`
	Projection int    `json:"projection"`
}
