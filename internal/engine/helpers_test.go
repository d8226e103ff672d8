package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rcx/internal/ir"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, p ir.Program, opts ...Option) *Engine {
	t.Helper()
	base := []Option{WithRunID("run-test"), WithLogger(discardLogger())}
	e, err := New(p, append(base, opts...)...)
	require.NoError(t, err)
	return e
}

func rule(op ir.Opcode, addr uint32) ir.Rule {
	return ir.Rule{Op: op, Addr: addr}
}

// heapWith returns a heap of n zero bytes with b stored at addr.
func heapWith(n int, addr int, b byte) []byte {
	h := make([]byte, n)
	h[addr] = b
	return h
}
