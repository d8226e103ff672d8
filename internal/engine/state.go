package engine

import "github.com/roach88/rcx/internal/ir"

// State is the lifecycle position of an Engine.
type State int

const (
	// StateLoaded means the program is in place and no pass has run.
	StateLoaded State = iota

	// StateRunning means at least one pass has run without a terminal result.
	StateRunning

	// StateConverged means a full pass left the fingerprint unchanged.
	StateConverged

	// StateTimedOut means MaxIterations passes ran without convergence.
	StateTimedOut

	// StateLoadFailed means the input could not be loaded.
	StateLoadFailed
)

var stateNames = [...]string{
	StateLoaded:     "loaded",
	StateRunning:    "running",
	StateConverged:  "converged",
	StateTimedOut:   "timed_out",
	StateLoadFailed: "load_failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further pass may run.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateTimedOut || s == StateLoadFailed
}

// Outcome maps a terminal state to its reported outcome. Non-terminal
// states have no outcome and return "".
func (s State) Outcome() ir.Outcome {
	switch s {
	case StateConverged:
		return ir.OutcomeConverged
	case StateTimedOut:
		return ir.OutcomeTimedOut
	case StateLoadFailed:
		return ir.OutcomeLoadFailed
	default:
		return ""
	}
}
