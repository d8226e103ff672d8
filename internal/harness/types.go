package harness

import "github.com/roach88/rcx/internal/ir"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held and the run replayed
	// identically from the run history.
	Pass bool `json:"pass"`

	RunID       string          `json:"run_id"`
	Outcome     ir.Outcome      `json:"outcome"`
	Iterations  int             `json:"iterations"`
	Passes      []ir.Pass       `json:"passes"`
	Divergences []ir.Divergence `json:"divergences"`

	// Rules and Heap are the final rule store and heap window.
	Rules []ir.Rule `json:"rules"`
	Heap  []byte    `json:"heap"`

	// LoadError is set when the input could not be loaded.
	LoadError string `json:"load_error,omitempty"`

	// Errors contains assertion and replay failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// peek reads the final arena; nil when the load failed.
	peek func(addr uint32) byte
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Passes:      []ir.Pass{},
		Divergences: []ir.Divergence{},
		Rules:       []ir.Rule{},
		Errors:      []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
