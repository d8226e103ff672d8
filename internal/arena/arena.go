// Package arena implements the fixed-size, byte-addressable memory space
// the RCX engine rewrites.
//
// Every access is bounds-checked. Out-of-range addresses never touch memory:
// reads yield 0 and writes are dropped. This degrade-to-no-op policy is what
// lets a buggy rule set keep running toward convergence or timeout instead of
// halting the rewriting loop.
//
// An Arena is owned by exactly one engine instance and is not safe for
// concurrent use.
package arena

// DefaultCapacity is the arena size used when no explicit capacity is given.
const DefaultCapacity = 1 << 16

// Arena is a zero-initialized byte space with address range [0, Capacity).
type Arena struct {
	mem []byte

	// Most recent in-bounds read, for diagnostics and traversal extensions.
	lastAddr  uint32
	lastValue byte
	hasRead   bool
}

// New allocates a zeroed arena. A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Arena {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Arena{mem: make([]byte, capacity)}
}

// Capacity returns the size of the address space.
func (a *Arena) Capacity() int {
	return len(a.mem)
}

// InBounds reports whether addr addresses a byte of the arena.
func (a *Arena) InBounds(addr uint32) bool {
	return uint64(addr) < uint64(len(a.mem))
}

// Read returns the byte at addr, or 0 when addr is out of range.
// In-range reads update the last-read pair.
func (a *Arena) Read(addr uint32) byte {
	if !a.InBounds(addr) {
		return 0
	}
	v := a.mem[addr]
	a.lastAddr, a.lastValue, a.hasRead = addr, v, true
	return v
}

// Peek returns the byte at addr like Read but leaves the last-read pair
// untouched. Mutating primitives use it so that only Traverse is observable
// through LastRead.
func (a *Arena) Peek(addr uint32) byte {
	if !a.InBounds(addr) {
		return 0
	}
	return a.mem[addr]
}

// Write stores v at addr. Out-of-range writes are silently dropped.
func (a *Arena) Write(addr uint32, v byte) {
	if !a.InBounds(addr) {
		return
	}
	a.mem[addr] = v
}

// LastRead returns the most recent in-range read. ok is false until the
// first successful read.
func (a *Arena) LastRead() (addr uint32, value byte, ok bool) {
	return a.lastAddr, a.lastValue, a.hasRead
}

// Window returns a copy of the bytes in [start, start+n), clamped to the
// arena. An out-of-range start yields an empty slice.
func (a *Arena) Window(start uint32, n int) []byte {
	view := a.view(start, n)
	out := make([]byte, len(view))
	copy(out, view)
	return out
}

// View is like Window but returns the live slice without copying. Callers
// must not retain or modify it; it exists so fingerprinting does not
// allocate on every pass.
func (a *Arena) View(start uint32, n int) []byte {
	return a.view(start, n)
}

func (a *Arena) view(start uint32, n int) []byte {
	if !a.InBounds(start) || n <= 0 {
		return nil
	}
	end := uint64(start) + uint64(n)
	if end > uint64(len(a.mem)) {
		end = uint64(len(a.mem))
	}
	return a.mem[start:end]
}

// Load copies data into the arena starting at base. Bytes that fall outside
// the arena are dropped; the number of bytes actually stored is returned.
func (a *Arena) Load(base uint32, data []byte) int {
	if !a.InBounds(base) {
		return 0
	}
	return copy(a.mem[base:], data)
}
