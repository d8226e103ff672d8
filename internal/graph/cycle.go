package graph

import (
	"fmt"
	"strings"
)

// CycleError is returned by Evolve when a pass would start from a motif an
// earlier pass already started from.
//
// Without this check a cyclic projection set (a -> b, b -> a) or a self-loop
// (a -> a) would keep "changing" the motif forever.
type CycleError struct {
	// Path lists the motifs walked from the first start of the repeated motif
	// back to it, so it begins and ends with the same motif.
	Path []int

	// Closure is the closure whose activation closed the cycle.
	Closure int
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, m := range e.Path {
		parts[i] = fmt.Sprintf("%d", m)
	}
	return fmt.Sprintf("evolution cycle via closure %d: %s", e.Closure, strings.Join(parts, " -> "))
}

// cycleDetector tracks the motif each pass of one evolution started from,
// along with the step count at that point.
type cycleDetector struct {
	starts map[int]int
}

func newCycleDetector() *cycleDetector {
	return &cycleDetector{starts: make(map[int]int)}
}

// WouldCycle reports whether a pass already started from motif.
func (c *cycleDetector) WouldCycle(motif int) bool {
	_, ok := c.starts[motif]
	return ok
}

// Record notes that a pass starts from motif after step steps.
func (c *cycleDetector) Record(motif, step int) {
	if _, ok := c.starts[motif]; ok {
		return
	}
	c.starts[motif] = step
}

// Cycle builds the error for a pass about to start again from motif.
func (c *cycleDetector) Cycle(motif int, steps []Step) *CycleError {
	from := c.starts[motif]
	path := []int{motif}
	closure := -1
	for _, s := range steps[from:] {
		path = append(path, s.To)
		closure = s.Closure
	}
	return &CycleError{Path: path, Closure: closure}
}
