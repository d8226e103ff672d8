package engine

import "github.com/roach88/rcx/internal/ir"

// Result summarizes a run.
type Result struct {
	RunID   string     `json:"run_id"`
	Outcome ir.Outcome `json:"outcome"`

	// Iterations is the number of passes executed.
	Iterations int `json:"iterations"`

	// MaxIterations is the cap the run was bounded by.
	MaxIterations int `json:"max_iterations"`

	// FingerprintWindow is the main-loop window the run observed.
	FingerprintWindow int `json:"fingerprint_window"`

	// HeapWindow is the heap window Output was emitted with. Zero means the
	// loaded heap length.
	HeapWindow int `json:"heap_window"`

	// Fingerprint is the state fingerprint after the last pass.
	Fingerprint ir.Fingerprint `json:"fingerprint"`

	Passes      []ir.Pass       `json:"passes"`
	Divergences []ir.Divergence `json:"divergences"`

	// DivergencesDropped counts rewrites the full divergence log could not
	// record. A run with dropped records cannot be replayed.
	DivergencesDropped int `json:"divergences_dropped,omitempty"`

	// Recurrence is set when the window revisited an earlier fingerprint.
	Recurrence *Recurrence `json:"recurrence,omitempty"`

	// Output is the emitted container for the final state.
	Output []byte `json:"-"`
}

// Result snapshots the run so far. Outcome is empty until the engine is
// terminal.
func (e *Engine) Result() *Result {
	res := &Result{
		RunID:              e.runID,
		Outcome:            e.state.Outcome(),
		Iterations:         len(e.passes),
		MaxIterations:      e.maxIterations,
		FingerprintWindow:  e.FingerprintWindow(),
		HeapWindow:         e.heapWindow,
		Fingerprint:        e.baseline,
		Passes:             append([]ir.Pass(nil), e.passes...),
		Divergences:        e.Divergences(),
		DivergencesDropped: e.divergences.dropped,
		Recurrence:         e.recurrence.Found(),
		Output:             e.Emit(),
	}
	if n := len(e.passes); n > 0 {
		res.Fingerprint = e.passes[n-1].Fingerprint
	}
	return res
}
