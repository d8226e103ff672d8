package engine

import "github.com/roach88/rcx/internal/ir"

// DefaultMaxRules is the rule store capacity used when none is configured.
const DefaultMaxRules = 1024

// ruleStore is the ordered, capacity-bounded rule sequence. The index of a
// rule is its execution position.
type ruleStore struct {
	rules []ir.Rule
	limit int
}

func newRuleStore(limit int) *ruleStore {
	return &ruleStore{limit: limit}
}

// Append adds r at the end. Returns a CapacityError when the store is full.
func (s *ruleStore) Append(r ir.Rule) (int, error) {
	if len(s.rules) >= s.limit {
		return -1, &ir.CapacityError{Registry: "rules", Limit: s.limit}
	}
	s.rules = append(s.rules, r)
	return len(s.rules) - 1, nil
}

// Get returns the rule at i.
func (s *ruleStore) Get(i int) (ir.Rule, bool) {
	if i < 0 || i >= len(s.rules) {
		return ir.Rule{}, false
	}
	return s.rules[i], true
}

// Set overwrites the rule at i. Reports false if i is out of range.
func (s *ruleStore) Set(i int, r ir.Rule) bool {
	if i < 0 || i >= len(s.rules) {
		return false
	}
	s.rules[i] = r
	return true
}

// Len returns the number of stored rules.
func (s *ruleStore) Len() int {
	return len(s.rules)
}

// Snapshot returns a copy of the rules in order.
func (s *ruleStore) Snapshot() []ir.Rule {
	out := make([]ir.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}
