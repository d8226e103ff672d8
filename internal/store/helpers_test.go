package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rcx/internal/ir"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRun(id string, outcome ir.Outcome) Run {
	return Run{
		ID:                id,
		Input:             []byte("RCX\x00" + id),
		Output:            []byte("out-" + id),
		Outcome:           outcome,
		Iterations:        2,
		MaxIterations:     10,
		FingerprintWindow: 1024,
		Fingerprint:       ir.StateFingerprint([]byte(id)),
		EngineVersion:     ir.EngineVersion,
	}
}

func testPasses() []ir.Pass {
	return []ir.Pass{
		{Iteration: 0, Fingerprint: ir.StateFingerprint([]byte{1}), Unfixed: 1},
		{Iteration: 1, Fingerprint: ir.StateFingerprint([]byte{2}), Fixed: 1},
	}
}

func testDivergences() []ir.Divergence {
	return []ir.Divergence{
		{
			Seq: 1, Iteration: 1, Index: 0,
			Previous: ir.Rule{Op: ir.OpDelta, Addr: 5}.Bytes(),
			Next:     ir.Rule{Op: ir.OpTraverse, Addr: 5}.Bytes(),
		},
		{
			Seq: 2, Iteration: 1, Index: 1,
			Previous: ir.Rule{Op: ir.OpFix, Addr: 0x3000}.Bytes(),
			Next:     ir.Rule{Op: ir.OpDelta, Addr: 0x3001}.Bytes(),
		},
	}
}
