package engine

import "github.com/roach88/rcx/internal/ir"

// DefaultDivergenceCapacity bounds the divergence log.
const DefaultDivergenceCapacity = 4096

// divergenceLog is the append-only audit trail of rule rewrites.
// Once full it drops further records and counts them; the mutation itself
// still happens.
type divergenceLog struct {
	records []ir.Divergence
	limit   int
	clock   *Clock
	dropped int
}

func newDivergenceLog(limit int, clock *Clock) *divergenceLog {
	return &divergenceLog{limit: limit, clock: clock}
}

// Append stamps and stores a record. Reports false when the log is full.
func (l *divergenceLog) Append(iteration, index int, prev, next ir.Rule) bool {
	if len(l.records) >= l.limit {
		l.dropped++
		return false
	}
	l.records = append(l.records, ir.Divergence{
		Seq:       l.clock.Next(),
		Iteration: iteration,
		Index:     index,
		Previous:  prev.Bytes(),
		Next:      next.Bytes(),
	})
	return true
}

// Records returns a copy of the log in append order.
func (l *divergenceLog) Records() []ir.Divergence {
	out := make([]ir.Divergence, len(l.records))
	copy(out, l.records)
	return out
}

// MutateRule overwrites the rule at index with r, logs a divergence record
// and rebuilds that rule's dispatch entry.
//
// An out-of-range index is ignored: nothing is stored, nothing is logged,
// and false is returned. A full divergence log does not block the rewrite.
func (e *Engine) MutateRule(index int, r ir.Rule) bool {
	prev, ok := e.rules.Get(index)
	if !ok {
		return false
	}

	if !e.divergences.Append(e.iteration, index, prev, r) && e.divergences.dropped == 1 {
		e.logger.Warn("divergence log full, further records dropped",
			"run_id", e.runID,
			"limit", e.divergences.limit)
	}

	e.rules.Set(index, r)
	e.table[index] = e.buildEntry(r)

	e.logger.Debug("rule mutated",
		"run_id", e.runID,
		"iteration", e.iteration,
		"index", index,
		"previous", prev.String(),
		"next", r.String())
	return true
}

// applySchedule performs the mutations scheduled for the current iteration
// in the order they were given.
func (e *Engine) applySchedule() {
	for _, m := range e.schedule[e.iteration] {
		if !e.MutateRule(m.Index, m.Rule) {
			e.logger.Debug("scheduled mutation ignored",
				"run_id", e.runID,
				"iteration", e.iteration,
				"index", m.Index)
		}
	}
}
