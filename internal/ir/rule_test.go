package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleBytes_LittleEndianAddress(t *testing.T) {
	r := Rule{Op: OpFix, Addr: 0x00003000}
	assert.Equal(t, [RuleSize]byte{0x02, 0x00, 0x30, 0x00, 0x00}, r.Bytes())
}

func TestRuleFromBytes_RoundTrip(t *testing.T) {
	tests := []Rule{
		{Op: OpTraverse, Addr: 0},
		{Op: OpDelta, Addr: 5},
		{Op: OpFix, Addr: 0xFFFFFFFF},
		{Op: Opcode(0x7F), Addr: 0x12345678},
	}
	for _, r := range tests {
		t.Run(r.String(), func(t *testing.T) {
			assert.Equal(t, r, RuleFromBytes(r.Bytes()))
		})
	}
}

func TestParseRuleBytes_WrongLength(t *testing.T) {
	_, err := ParseRuleBytes([]byte{0x01, 0x02})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be 5 bytes")

	r, err := ParseRuleBytes([]byte{0x01, 0x05, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, Rule{Op: OpDelta, Addr: 5}, r)
}

func TestParseOpcode(t *testing.T) {
	tests := []struct {
		name string
		want Opcode
	}{
		{"traverse", OpTraverse},
		{"NABLA", OpTraverse},
		{"delta", OpDelta},
		{" mutate ", OpDelta},
		{"fix", OpFix},
		{"probe", OpFix},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOpcode(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOpcode("emit")
	assert.Error(t, err)
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "traverse", OpTraverse.String())
	assert.Equal(t, "op(9)", Opcode(9).String())
	assert.True(t, OpFix.Known())
	assert.False(t, Opcode(3).Known())
}

func TestSchedule_FromDivergences(t *testing.T) {
	divs := []Divergence{
		{Seq: 1, Iteration: 2, Index: 0, Previous: Rule{Op: OpDelta, Addr: 1}.Bytes(), Next: Rule{Op: OpFix, Addr: 1}.Bytes()},
	}
	got := Schedule(divs)
	require.Len(t, got, 1)
	assert.Equal(t, ScheduledMutation{Iteration: 2, Index: 0, Rule: Rule{Op: OpFix, Addr: 1}}, got[0])
}

func TestCapacityError_Is(t *testing.T) {
	var err error = &CapacityError{Registry: "motifs", Limit: 4}
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, "motifs: capacity exceeded (limit 4)", err.Error())
}
