package engine

import "github.com/roach88/rcx/internal/ir"

// Signal is what a dispatched rule reports back to the pass loop.
type Signal uint8

const (
	// SignalNone is returned by Traverse, Delta, unknown opcodes and
	// missing rule indices.
	SignalNone Signal = iota

	// SignalFixed is returned by a Fix probe whose window is unchanged.
	SignalFixed

	// SignalUnfixed is returned by a Fix probe whose window changed, was
	// probed for the first time, or lies out of bounds.
	SignalUnfixed
)

func (s Signal) String() string {
	switch s {
	case SignalFixed:
		return "fixed"
	case SignalUnfixed:
		return "unfixed"
	default:
		return "none"
	}
}

// entry is a dispatch table slot: one rule with its address bound.
type entry func() Signal

func noop() Signal { return SignalNone }

// buildEntry binds r's opcode and address to the matching primitive.
// Unknown opcodes bind to a no-op.
func (e *Engine) buildEntry(r ir.Rule) entry {
	addr := r.Addr
	switch r.Op {
	case ir.OpTraverse:
		return func() Signal {
			e.Traverse(addr)
			return SignalNone
		}
	case ir.OpDelta:
		return func() Signal {
			e.Delta(addr)
			return SignalNone
		}
	case ir.OpFix:
		return func() Signal {
			if e.Fix(addr) {
				return SignalFixed
			}
			return SignalUnfixed
		}
	default:
		return noop
	}
}

// rebuildTable builds one entry per stored rule. Called once at load.
func (e *Engine) rebuildTable() {
	e.table = make([]entry, e.rules.Len())
	for i := range e.table {
		r, _ := e.rules.Get(i)
		e.table[i] = e.buildEntry(r)
	}
}

// Dispatch invokes the entry bound to rule index. A missing index is a
// no-op reporting SignalNone.
func (e *Engine) Dispatch(index int) Signal {
	if index < 0 || index >= len(e.table) {
		return SignalNone
	}
	return e.table[index]()
}
