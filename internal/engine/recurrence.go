package engine

import "github.com/roach88/rcx/internal/ir"

// Recurrence reports that the observation window returned to an earlier
// fingerprint without converging, e.g. a Delta that toggles one byte every
// pass. It is diagnostic only and never changes the outcome: scheduled
// mutations, Fix baselines and bytes outside the window are not part of
// the fingerprint, so a recurrence does not prove the run can never
// converge.
type Recurrence struct {
	// First is the pass after which the fingerprint was first seen; -1
	// means the state before pass 0.
	First int `json:"first"`

	// Repeat is the pass at which it was seen again.
	Repeat int `json:"repeat"`
}

// Period is the number of passes between the two sightings.
func (r Recurrence) Period() int {
	return r.Repeat - r.First
}

// recurrenceDetector remembers every fingerprint seen in one run and
// reports the first repeat.
type recurrenceDetector struct {
	seen  map[ir.Fingerprint]int
	found *Recurrence
}

func newRecurrenceDetector() *recurrenceDetector {
	return &recurrenceDetector{seen: make(map[ir.Fingerprint]int)}
}

// Observe records f as seen after pass. It returns the recurrence the first
// time one is found and nil otherwise.
func (d *recurrenceDetector) Observe(f ir.Fingerprint, pass int) *Recurrence {
	if d.found != nil {
		return nil
	}
	if first, ok := d.seen[f]; ok {
		d.found = &Recurrence{First: first, Repeat: pass}
		return d.found
	}
	d.seen[f] = pass
	return nil
}

// Found returns the recurrence, if any.
func (d *recurrenceDetector) Found() *Recurrence {
	return d.found
}
