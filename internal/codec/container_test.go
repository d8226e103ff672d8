package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rcx/internal/ir"
)

func assertRoundTrip(t *testing.T, p ir.Program) {
	t.Helper()
	got, err := Decode(Encode(p))
	require.NoError(t, err)
	if diff := cmp.Diff(p, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_Empty(t *testing.T) {
	assertRoundTrip(t, ir.Program{})
}

func TestRoundTrip_EachOpcode(t *testing.T) {
	for _, op := range []ir.Opcode{ir.OpTraverse, ir.OpDelta, ir.OpFix} {
		t.Run(op.String(), func(t *testing.T) {
			assertRoundTrip(t, ir.Program{Rules: []ir.Rule{{Op: op, Addr: 0x3000}}})
		})
	}
}

func TestRoundTrip_UnknownOpcodePreserved(t *testing.T) {
	assertRoundTrip(t, ir.Program{Rules: []ir.Rule{{Op: ir.Opcode(0xEE), Addr: 1}}})
}

func TestRoundTrip_WithHeap(t *testing.T) {
	assertRoundTrip(t, ir.Program{
		Rules: []ir.Rule{{Op: ir.OpDelta, Addr: 5}, {Op: ir.OpFix, Addr: 0}},
		Heap:  []byte{0x10, 0x20, 0x30, 0x00, 0xFF},
	})
}

func TestRoundTrip_CapacityBoundary(t *testing.T) {
	const maxRules = 1024
	rules := make([]ir.Rule, maxRules)
	for i := range rules {
		rules[i] = ir.Rule{Op: ir.Opcode(i % 3), Addr: uint32(i * 7)}
	}
	assertRoundTrip(t, ir.Program{Rules: rules, Heap: bytes.Repeat([]byte{0xA5}, 64)})
}

func TestEncode_Layout(t *testing.T) {
	out := Encode(ir.Program{
		Rules: []ir.Rule{{Op: ir.OpTraverse, Addr: 0x3000}, {Op: ir.OpFix, Addr: 0x3000}},
		Heap:  []byte{0xAA},
	})

	want := []byte{
		'R', 'C', 'X', 0x00,
		0x02, 0, 0, 0, 0, 0, 0, 0,
		0x00, 0x00, 0x30, 0x00, 0x00,
		0x02, 0x00, 0x30, 0x00, 0x00,
		0xAA,
	}
	assert.Equal(t, want, out)
	assert.Equal(t, Magic, binary.LittleEndian.Uint32(out[:4]))
}

func TestDecode_ShortInput(t *testing.T) {
	for _, n := range []int{0, 4, 11} {
		_, err := Decode(make([]byte, n))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrShortInput)
		assert.True(t, IsDecodeError(err))
	}
}

func TestDecode_BadMagic(t *testing.T) {
	data := Encode(ir.Program{})
	data[0] = 'X'

	p, err := Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadMagic)
	assert.Empty(t, p.Rules, "failed decode must not populate state")
	assert.Nil(t, p.Heap)
}

func TestDecode_TruncatedRules(t *testing.T) {
	data := Encode(ir.Program{Rules: []ir.Rule{{Op: ir.OpDelta, Addr: 1}}})
	// Claim two rules while only one is present
	binary.LittleEndian.PutUint64(data[4:12], 2)

	p, err := Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncatedRules)
	assert.Nil(t, p.Rules)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 4, de.Offset)
}

func TestDecode_HugeCountDoesNotOverflow(t *testing.T) {
	data := Encode(ir.Program{})
	binary.LittleEndian.PutUint64(data[4:12], ^uint64(0))

	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrTruncatedRules)
	assert.Contains(t, err.Error(), "*5")
}

func TestDecode_TrailingZerosBecomeHeap(t *testing.T) {
	p := ir.Program{Rules: []ir.Rule{{Op: ir.OpFix, Addr: 2}}}
	padded := append(Encode(p), 0, 0, 0)

	got, err := Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, p.Rules, got.Rules, "rule count comes from the header, not the buffer length")
	assert.Equal(t, []byte{0, 0, 0}, got.Heap)
}

func TestDecode_CopiesInput(t *testing.T) {
	data := Encode(ir.Program{Heap: []byte{1, 2, 3}})
	got, err := Decode(data)
	require.NoError(t, err)

	data[len(data)-1] = 9
	assert.Equal(t, []byte{1, 2, 3}, got.Heap)
}

func TestReadWrite(t *testing.T) {
	p := ir.Program{Rules: []ir.Rule{{Op: ir.OpDelta, Addr: 7}}, Heap: []byte{1}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p))

	got, raw, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, Encode(p), raw)
	assert.Equal(t, p, got)
}

func TestRead_DecodeFailureReturnsRaw(t *testing.T) {
	_, raw, err := Read(bytes.NewReader([]byte("nope")))
	require.Error(t, err)
	assert.Equal(t, []byte("nope"), raw)
}
