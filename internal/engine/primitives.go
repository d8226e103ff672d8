package engine

import "github.com/roach88/rcx/internal/ir"

// ProbeWindow is the number of bytes a Fix probe fingerprints.
const ProbeWindow = 8

// DeltaMask returns the XOR mask Delta applies at addr: the low byte of the
// address, or 0xFF when that byte is zero so the transform still flips bits
// at multiples of 256.
func DeltaMask(addr uint32) byte {
	if m := byte(addr); m != 0 {
		return m
	}
	return 0xFF
}

// Traverse reads the byte at addr. The read is recorded as the arena's
// last-read pair. Out of bounds yields 0.
func (e *Engine) Traverse(addr uint32) byte {
	return e.arena.Read(addr)
}

// Delta XORs the byte at addr with DeltaMask(addr). Applying it twice
// restores the original byte. Out of bounds is a no-op.
func (e *Engine) Delta(addr uint32) {
	if !e.arena.InBounds(addr) {
		return
	}
	e.arena.Write(addr, e.arena.Peek(addr)^DeltaMask(addr))
}

// Fix probes the ProbeWindow bytes starting at addr (clamped to the arena)
// and reports whether they are unchanged since the previous probe at addr.
//
// The first probe at an address records a baseline and reports false. A
// changed window replaces the baseline. An unchanged window keeps it, so
// the result stays true until the window changes again. Out-of-bounds
// probes report false and record nothing.
func (e *Engine) Fix(addr uint32) bool {
	if !e.arena.InBounds(addr) {
		return false
	}
	f := ir.ProbeFingerprint(e.arena.View(addr, ProbeWindow))
	if prev, ok := e.probes[addr]; ok && prev == f {
		return true
	}
	e.probes[addr] = f
	return false
}
