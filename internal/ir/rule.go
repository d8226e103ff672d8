package ir

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// RuleSize is the encoded size of a single rule record in bytes.
const RuleSize = 5

// Opcode selects the primitive a rule invokes.
type Opcode uint8

// Opcodes understood by the dispatch builder. Any other value is legal in a
// rule record and dispatches to a no-op.
const (
	OpTraverse Opcode = 0
	OpDelta    Opcode = 1
	OpFix      Opcode = 2
)

var opcodeNames = map[Opcode]string{
	OpTraverse: "traverse",
	OpDelta:    "delta",
	OpFix:      "fix",
}

// String returns the lowercase opcode name, or "op(N)" for unknown opcodes.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Known reports whether the opcode maps to a primitive.
func (o Opcode) Known() bool {
	_, ok := opcodeNames[o]
	return ok
}

// ParseOpcode resolves an opcode name ("traverse", "delta", "fix") or one of
// the symbolic aliases used in rule listings ("nabla", "read", "mutate", "probe").
func ParseOpcode(name string) (Opcode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "traverse", "nabla", "read":
		return OpTraverse, nil
	case "delta", "mutate":
		return OpDelta, nil
	case "fix", "probe":
		return OpFix, nil
	default:
		return 0, fmt.Errorf("unknown opcode %q", name)
	}
}

// Rule is one byte-level instruction: an opcode bound to an address.
//
// Addresses are validated lazily by the primitive they address, never here.
type Rule struct {
	Op   Opcode `json:"op"`
	Addr uint32 `json:"addr"`
}

// Bytes returns the 5-byte wire form: opcode followed by little-endian address.
func (r Rule) Bytes() [RuleSize]byte {
	var b [RuleSize]byte
	b[0] = byte(r.Op)
	binary.LittleEndian.PutUint32(b[1:], r.Addr)
	return b
}

// String renders the rule as "op@0xADDR".
func (r Rule) String() string {
	return fmt.Sprintf("%s@0x%04x", r.Op, r.Addr)
}

// RuleFromBytes decodes a rule from its 5-byte wire form.
func RuleFromBytes(b [RuleSize]byte) Rule {
	return Rule{
		Op:   Opcode(b[0]),
		Addr: binary.LittleEndian.Uint32(b[1:]),
	}
}

// ParseRuleBytes decodes a rule from a slice that must be exactly RuleSize long.
func ParseRuleBytes(b []byte) (Rule, error) {
	if len(b) != RuleSize {
		return Rule{}, fmt.Errorf("rule must be %d bytes, got %d", RuleSize, len(b))
	}
	var fixed [RuleSize]byte
	copy(fixed[:], b)
	return RuleFromBytes(fixed), nil
}
