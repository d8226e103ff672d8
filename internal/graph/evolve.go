package graph

import "fmt"

// Activate applies one closure to one motif.
//
// The closure is resolved to its projection. When motif is the projection's
// source, the projection's target is returned with changed=true; otherwise
// the motif is returned unchanged. A closure whose projection does not exist
// never activates. The target is returned as packed even when no motif is
// registered at that index.
func (r *Registry) Activate(closure, motif int) (result int, changed bool) {
	c, ok := r.Closure(closure)
	if !ok {
		return motif, false
	}
	p, ok := r.Projection(c.Projection)
	if !ok {
		return motif, false
	}
	if motif != p.Source {
		return motif, false
	}
	return p.Target, true
}

// Step records one successful activation during evolution.
type Step struct {
	Pass    int
	Closure int
	From    int
	To      int
}

// Evolution is the result of evolving a start motif to its fixpoint.
type Evolution struct {
	Start  int
	Final  int
	Passes int
	Steps  []Step
}

// Evolve repeatedly activates every closure in registration order against the
// current motif, adopting each rewrite immediately. Evolution stops when one
// complete pass over all closures changes nothing.
//
// A pass is fully determined by the motif it starts from, so evolution cycles
// exactly when a pass starts from a motif an earlier pass already started
// from. Motifs revisited inside a pass are fine. A repeated pass start stops
// evolution and returns *CycleError with the progress made so far; Final is
// then the repeated motif. Without a cycle evolution finishes within
// MotifCount()+1 passes.
func (r *Registry) Evolve(start int) (Evolution, error) {
	ev := Evolution{Start: start, Final: start}
	if _, ok := r.Motif(start); !ok {
		return ev, fmt.Errorf("evolve: unknown start motif %d", start)
	}

	detector := newCycleDetector()
	current := start

	for {
		if detector.WouldCycle(current) {
			ev.Final = current
			return ev, detector.Cycle(current, ev.Steps)
		}
		detector.Record(current, len(ev.Steps))

		changedThisPass := false
		for ci := 0; ci < len(r.closures); ci++ {
			next, changed := r.Activate(ci, current)
			if !changed {
				continue
			}
			ev.Steps = append(ev.Steps, Step{Pass: ev.Passes, Closure: ci, From: current, To: next})
			current = next
			changedThisPass = true
		}
		ev.Passes++
		if !changedThisPass {
			break
		}
	}

	ev.Final = current
	return ev, nil
}
