package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates "prefix-0001", "prefix-0002", ... so golden
// output that embeds run ids stays stable.
//
// Unlike engine.FixedGenerator it never runs out, and it can be reset so the
// same scenario run twice yields the same ids.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator. An empty prefix becomes "run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate implements engine.RunIDGenerator.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Issued returns how many ids have been generated since the last Reset.
func (g *SequentialRunIDs) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts numbering at 1.
func (g *SequentialRunIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

// ConstantRunID returns the same id on every call. Harness scenarios use it
// so every run in a scenario shares the id written in the YAML.
//
// Stateless and safe for concurrent use.
type ConstantRunID struct {
	id string
}

// NewConstantRunID creates the generator. An empty id becomes "run-test".
func NewConstantRunID(id string) ConstantRunID {
	if id == "" {
		id = "run-test"
	}
	return ConstantRunID{id: id}
}

// Generate implements engine.RunIDGenerator.
func (g ConstantRunID) Generate() string {
	return g.id
}
