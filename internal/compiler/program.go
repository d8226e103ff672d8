package compiler

import (
	"encoding/hex"
	"fmt"
	"math"

	"cuelang.org/go/cue"

	"github.com/roach88/rcx/internal/ir"
)

// CompileProgram parses a CUE program value into a ProgramSpec.
//
// The value is the program struct itself, e.g. program.toggle in:
//
//	program: toggle: {
//		max_iterations: 5
//		rules: [
//			{op: "delta", addr: 5},
//			{op: "fix", addr: 0x3000},
//		]
//		heap: [0, 0, 0, 0, 0, 0x10]
//		poke: [{addr: 0x40, value: 0xFF}]
//		mutations: [{iteration: 2, index: 0, op: "traverse", addr: 5}]
//	}
//
// heap may be a list of byte values, a CUE bytes literal, or given as
// heap_hex. poke entries write single bytes after the heap is laid out,
// growing it with zeros as needed. op is an opcode name or a raw number;
// raw numbers outside the known set compile to rules that never fire.
func CompileProgram(v cue.Value) (*ir.ProgramSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ProgramSpec{Name: labelOf(v)}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, &CompileError{Field: "rules", Message: "rules is required", Pos: v.Pos()}
	}
	rules, err := parseRules(rulesVal)
	if err != nil {
		return nil, err
	}
	spec.Program.Rules = rules

	heap, err := parseHeap(v)
	if err != nil {
		return nil, err
	}
	spec.Program.Heap = heap

	if mv := v.LookupPath(cue.ParsePath("max_iterations")); mv.Exists() {
		n, err := intField(mv, "max_iterations", 1, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		spec.MaxIterations = int(n)
	}

	if mv := v.LookupPath(cue.ParsePath("mutations")); mv.Exists() {
		spec.Schedule, err = parseMutations(mv)
		if err != nil {
			return nil, err
		}
	}

	return spec, nil
}

func labelOf(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return sels[len(sels)-1].String()
}

func parseRules(v cue.Value) ([]ir.Rule, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	rules := []ir.Rule{}
	for i := 0; iter.Next(); i++ {
		r, err := parseRule(iter.Value(), fmt.Sprintf("rules[%d]", i))
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func parseRule(v cue.Value, field string) (ir.Rule, error) {
	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return ir.Rule{}, &CompileError{Field: field + ".op", Message: "op is required", Pos: v.Pos()}
	}
	op, err := parseOp(opVal, field+".op")
	if err != nil {
		return ir.Rule{}, err
	}

	addrVal := v.LookupPath(cue.ParsePath("addr"))
	if !addrVal.Exists() {
		return ir.Rule{}, &CompileError{Field: field + ".addr", Message: "addr is required", Pos: v.Pos()}
	}
	addr, err := intField(addrVal, field+".addr", 0, math.MaxUint32)
	if err != nil {
		return ir.Rule{}, err
	}

	return ir.Rule{Op: op, Addr: uint32(addr)}, nil
}

func parseOp(v cue.Value, field string) (ir.Opcode, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		name, err := v.String()
		if err != nil {
			return 0, formatCUEError(err)
		}
		op, err := ir.ParseOpcode(name)
		if err != nil {
			return 0, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return op, nil
	case cue.IntKind:
		n, err := intField(v, field, 0, math.MaxUint8)
		if err != nil {
			return 0, err
		}
		return ir.Opcode(n), nil
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("op must be a name or a byte, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// intField reads an integer and checks it against [lo, hi].
func intField(v cue.Value, field string, lo, hi int64) (int64, error) {
	if !v.Exists() {
		return 0, &CompileError{Field: field, Message: "value is required"}
	}
	if k := v.IncompleteKind(); k != cue.IntKind {
		if k == cue.FloatKind || k == cue.NumberKind {
			return 0, &CompileError{Field: field, Message: "floats are not allowed, use an int", Pos: v.Pos()}
		}
		return 0, &CompileError{Field: field, Message: fmt.Sprintf("want int, got %v", k), Pos: v.Pos()}
	}
	n, err := v.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n < lo || n > hi {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%d out of range [%d, %d]", n, lo, hi),
			Pos:     v.Pos(),
		}
	}
	return n, nil
}

func parseHeap(v cue.Value) ([]byte, error) {
	var heap []byte

	heapVal := v.LookupPath(cue.ParsePath("heap"))
	hexVal := v.LookupPath(cue.ParsePath("heap_hex"))
	if heapVal.Exists() && hexVal.Exists() {
		return nil, &CompileError{Field: "heap", Message: "heap and heap_hex are mutually exclusive", Pos: v.Pos()}
	}

	switch {
	case heapVal.Exists() && heapVal.IncompleteKind() == cue.BytesKind:
		b, err := heapVal.Bytes()
		if err != nil {
			return nil, formatCUEError(err)
		}
		heap = b
	case heapVal.Exists():
		iter, err := heapVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			b, err := intField(iter.Value(), fmt.Sprintf("heap[%d]", i), 0, math.MaxUint8)
			if err != nil {
				return nil, err
			}
			heap = append(heap, byte(b))
		}
	case hexVal.Exists():
		s, err := hexVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		heap, err = hex.DecodeString(s)
		if err != nil {
			return nil, &CompileError{Field: "heap_hex", Message: err.Error(), Pos: hexVal.Pos()}
		}
	}

	pokeVal := v.LookupPath(cue.ParsePath("poke"))
	if !pokeVal.Exists() {
		return heap, nil
	}
	iter, err := pokeVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		field := fmt.Sprintf("poke[%d]", i)
		addr, err := intField(iter.Value().LookupPath(cue.ParsePath("addr")), field+".addr", 0, MaxPokeAddr)
		if err != nil {
			return nil, err
		}
		val, err := intField(iter.Value().LookupPath(cue.ParsePath("value")), field+".value", 0, math.MaxUint8)
		if err != nil {
			return nil, err
		}
		if int(addr) >= len(heap) {
			heap = append(heap, make([]byte, int(addr)+1-len(heap))...)
		}
		heap[addr] = byte(val)
	}
	return heap, nil
}

// MaxPokeAddr bounds poke addresses to the default arena so a typo cannot
// allocate an enormous heap.
const MaxPokeAddr = 1<<16 - 1

func parseMutations(v cue.Value) ([]ir.ScheduledMutation, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.ScheduledMutation
	for i := 0; iter.Next(); i++ {
		field := fmt.Sprintf("mutations[%d]", i)
		mv := iter.Value()

		it, err := intField(mv.LookupPath(cue.ParsePath("iteration")), field+".iteration", 0, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		idx, err := intField(mv.LookupPath(cue.ParsePath("index")), field+".index", 0, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		r, err := parseRule(mv, field)
		if err != nil {
			return nil, err
		}
		out = append(out, ir.ScheduledMutation{Iteration: int(it), Index: int(idx), Rule: r})
	}
	return out, nil
}
