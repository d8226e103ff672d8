package ir

// Outcome is the terminal state reached by one engine run.
type Outcome string

const (
	// OutcomeConverged means the state fingerprint stabilized across a full pass.
	OutcomeConverged Outcome = "converged"

	// OutcomeTimedOut means the iteration cap was reached without convergence.
	// This is a valid terminal state, not an error.
	OutcomeTimedOut Outcome = "timed_out"

	// OutcomeLoadFailed means the input container could not be loaded.
	OutcomeLoadFailed Outcome = "load_failed"
)

// Pass records one full dispatch pass over the rule store.
type Pass struct {
	// Iteration is the 0-based pass number.
	Iteration int `json:"iteration"`

	// Fingerprint is the state fingerprint computed after the pass.
	Fingerprint Fingerprint `json:"fingerprint"`

	// Fixed counts Fix probes that reported converged during the pass.
	Fixed int `json:"fixed"`

	// Unfixed counts Fix probes that reported not converged during the pass.
	Unfixed int `json:"unfixed"`
}

// Divergence is the audit record appended whenever a stored rule is rewritten.
type Divergence struct {
	// Seq is the logical sequence number of the record within a run.
	Seq int64 `json:"seq"`

	// Iteration is the engine iteration counter when the rule changed.
	Iteration int `json:"iteration"`

	// Index is the rewritten position in the rule store.
	Index int `json:"index"`

	// Previous and Next hold the 5-byte rule records before and after.
	Previous [RuleSize]byte `json:"previous"`
	Next     [RuleSize]byte `json:"next"`
}

// Schedule converts divergence records back into the mutation schedule that
// produced them. Used by replay.
func Schedule(divs []Divergence) []ScheduledMutation {
	out := make([]ScheduledMutation, 0, len(divs))
	for _, d := range divs {
		out = append(out, ScheduledMutation{
			Iteration: d.Iteration,
			Index:     d.Index,
			Rule:      RuleFromBytes(d.Next),
		})
	}
	return out
}
