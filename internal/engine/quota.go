package engine

// DefaultMaxIterations is the iteration cap used when none is configured.
const DefaultMaxIterations = 1000

// IterationQuota counts non-converging passes against the iteration cap.
//
// The cap is the engine's only cancellation mechanism: every run ends in
// Converged or, after Max passes, TimedOut.
type IterationQuota struct {
	max     int
	current int
}

// NewIterationQuota creates a quota. A non-positive max selects
// DefaultMaxIterations.
func NewIterationQuota(max int) *IterationQuota {
	if max <= 0 {
		max = DefaultMaxIterations
	}
	return &IterationQuota{max: max}
}

// Advance counts one more non-converging pass and reports whether the cap
// has now been reached.
func (q *IterationQuota) Advance() (exhausted bool) {
	q.current++
	return q.current >= q.max
}

// Exhausted reports whether the cap has been reached.
func (q *IterationQuota) Exhausted() bool {
	return q.current >= q.max
}

// Current returns the number of counted passes.
func (q *IterationQuota) Current() int {
	return q.current
}

// Max returns the cap.
func (q *IterationQuota) Max() int {
	return q.max
}
