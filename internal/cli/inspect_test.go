package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rcx/internal/ir"
	"github.com/roach88/rcx/internal/testutil"
)

func TestInspectText(t *testing.T) {
	data := testutil.Container([]byte{1, 2, 3},
		ir.Rule{Op: ir.OpDelta, Addr: 5},
		ir.Rule{Op: ir.Opcode(9), Addr: 0x10},
	)
	input := testutil.WriteContainer(t, t.TempDir(), "in.rcx", data)

	stdout, _, err := execute(NewInspectCommand(&RootOptions{Format: "text"}), input)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "Container: 25 bytes, "+ir.ContainerHash(data))
	assert.Contains(t, out, "Rules: 2")
	assert.Contains(t, out, "  [0] delta@0x0005\n")
	assert.Contains(t, out, "  [1] op(9)@0x0010 (no-op)\n")
	assert.Contains(t, out, "Heap: 3 byte(s)")
}

func TestInspectJSONFromStdin(t *testing.T) {
	cmd := NewInspectCommand(&RootOptions{Format: "json"})
	cmd.SetIn(bytes.NewReader(testutil.TogglingContainer()))

	stdout, _, err := execute(cmd, "-")
	require.NoError(t, err)

	var result InspectResult
	resp := decodeData(t, stdout.Bytes(), &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []RuleInfo{{Index: 0, Op: "delta", Addr: 5, Known: true}}, result.Rules)
	assert.Equal(t, 6, result.HeapBytes)
	assert.Equal(t, len(testutil.TogglingContainer()), result.ContainerBytes)
}

func TestInspectBadMagic(t *testing.T) {
	input := testutil.WriteContainer(t, t.TempDir(), "bad.rcx", []byte("not a container at all"))

	stdout, _, err := execute(NewInspectCommand(&RootOptions{Format: "json"}), input)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeData(t, stdout.Bytes(), nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "LOAD_FAILED", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "magic mismatch")
}

func TestInspectMissingFile(t *testing.T) {
	_, _, err := execute(NewInspectCommand(&RootOptions{Format: "text"}), "/nonexistent/in.rcx")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeReadFailed)
}
