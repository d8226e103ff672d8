package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rcx/internal/ir"
)

func TestDeltaMask(t *testing.T) {
	assert.Equal(t, byte(0x05), DeltaMask(5))
	assert.Equal(t, byte(0x34), DeltaMask(0x1234))
	assert.Equal(t, byte(0xFF), DeltaMask(0))
	assert.Equal(t, byte(0xFF), DeltaMask(0x3000))
}

func TestDelta_SelfInverse(t *testing.T) {
	e := newTestEngine(t, ir.Program{Heap: heapWith(6, 5, 0x10)})

	e.Delta(5)
	assert.Equal(t, byte(0x15), e.Peek(5))

	e.Delta(5)
	assert.Equal(t, byte(0x10), e.Peek(5))
}

func TestDelta_MultipleOf256Flips(t *testing.T) {
	e := newTestEngine(t, ir.Program{})

	e.Delta(0x3000)
	assert.Equal(t, byte(0xFF), e.Peek(0x3000))
	e.Delta(0x3000)
	assert.Equal(t, byte(0x00), e.Peek(0x3000))
}

func TestDelta_OutOfBoundsNoop(t *testing.T) {
	e := newTestEngine(t, ir.Program{}, WithArenaCapacity(16))
	before := e.Fingerprint()

	e.Delta(16)
	e.Delta(0xFFFFFFFF)

	assert.Equal(t, before, e.Fingerprint())
}

func TestDelta_DoesNotRecordRead(t *testing.T) {
	e := newTestEngine(t, ir.Program{})
	e.Delta(7)

	_, _, ok := e.LastRead()
	assert.False(t, ok)
}

func TestTraverse_RecordsLastRead(t *testing.T) {
	e := newTestEngine(t, ir.Program{Heap: []byte{0, 0, 0xAB}})

	assert.Equal(t, byte(0xAB), e.Traverse(2))
	addr, v, ok := e.LastRead()
	assert.True(t, ok)
	assert.Equal(t, uint32(2), addr)
	assert.Equal(t, byte(0xAB), v)

	// Out of bounds yields 0 and leaves the pair alone
	assert.Equal(t, byte(0), e.Traverse(0xFFFFFFFF))
	addr, _, _ = e.LastRead()
	assert.Equal(t, uint32(2), addr)
}

func TestFix_BaselineThenConverged(t *testing.T) {
	e := newTestEngine(t, ir.Program{})
	const a = 0x3000

	assert.False(t, e.Fix(a), "first probe records a baseline")
	assert.True(t, e.Fix(a), "unchanged window converges")
	assert.True(t, e.Fix(a), "convergence is sticky")

	e.Delta(a + 1)
	assert.False(t, e.Fix(a), "a change inside the window breaks convergence")
	assert.True(t, e.Fix(a))
}

func TestFix_ChangeOutsideWindowIgnored(t *testing.T) {
	e := newTestEngine(t, ir.Program{})
	const a = 0x100

	e.Fix(a)
	e.Delta(a + ProbeWindow)
	assert.True(t, e.Fix(a))
}

func TestFix_SitesAreIndependent(t *testing.T) {
	e := newTestEngine(t, ir.Program{})

	assert.False(t, e.Fix(0x10))
	assert.False(t, e.Fix(0x20), "a new site has no baseline")
	assert.True(t, e.Fix(0x10))
}

func TestFix_OutOfBounds(t *testing.T) {
	e := newTestEngine(t, ir.Program{}, WithArenaCapacity(32))

	assert.False(t, e.Fix(32))
	assert.False(t, e.Fix(32))
	assert.Empty(t, e.probes, "out-of-bounds probe records nothing")
}

func TestFix_ClampedAtArenaEnd(t *testing.T) {
	e := newTestEngine(t, ir.Program{}, WithArenaCapacity(32))

	assert.False(t, e.Fix(30))
	assert.True(t, e.Fix(30))
	e.Delta(31)
	assert.False(t, e.Fix(30))
}
