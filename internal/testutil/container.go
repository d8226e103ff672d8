// Package testutil holds fixtures shared by package tests: deterministic run
// id generators and container builders.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rcx/internal/codec"
	"github.com/roach88/rcx/internal/ir"
)

// Container encodes rules and heap into an RCX container.
func Container(heap []byte, rules ...ir.Rule) []byte {
	if rules == nil {
		rules = []ir.Rule{}
	}
	return codec.Encode(ir.Program{Rules: rules, Heap: heap})
}

// ConvergingContainer is a two-rule program that converges on its first
// pass: Traverse and Fix over an untouched region, empty heap.
func ConvergingContainer() []byte {
	return Container(nil,
		ir.Rule{Op: ir.OpTraverse, Addr: 0x3000},
		ir.Rule{Op: ir.OpFix, Addr: 0x3000},
	)
}

// TogglingContainer flips arena byte 5 on every pass and never converges.
func TogglingContainer() []byte {
	return Container([]byte{0, 0, 0, 0, 0, 0x10}, ir.Rule{Op: ir.OpDelta, Addr: 5})
}

// WriteContainer writes data to name under dir and returns the path.
func WriteContainer(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
