package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rcx/internal/codec"
	"github.com/roach88/rcx/internal/ir"
)

func flipProgram() ir.Program {
	return ir.Program{
		Rules: []ir.Rule{{Op: ir.OpDelta, Addr: 5}, {Op: ir.OpFix, Addr: 0}},
		Heap:  []byte{0, 0, 0, 0, 0, 0x10},
	}
}

func TestCompileToFile(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "flip.cue", flipSource)
	out := filepath.Join(t.TempDir(), "flip.rcx")

	stdout, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), src, "--output", out)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "✓ Compiled flip: 2 rule(s), 6 heap byte(s)")
	assert.Contains(t, stdout.String(), "Wrote container to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	got, err := codec.Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(flipProgram(), got); diff != "" {
		t.Errorf("decoded program mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileToStdout(t *testing.T) {
	src := t.TempDir()
	path := writeSource(t, src, "flip.cue", flipSource)

	stdout, stderr, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)

	assert.Equal(t, codec.Encode(flipProgram()), stdout.Bytes(), "stdout carries only the container")
	assert.Contains(t, stderr.String(), "✓ Compiled flip")
}

func TestCompileJSON(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "flip.cue", flipSource)
	out := filepath.Join(t.TempDir(), "flip.rcx")

	stdout, _, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), src, "-o", out)
	require.NoError(t, err)

	var summary CompileSummary
	resp := decodeData(t, stdout.Bytes(), &summary)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "flip", summary.Program)
	assert.Equal(t, 2, summary.Rules)
	assert.Equal(t, 6, summary.HeapBytes)
	assert.Equal(t, 4+8+2*ir.RuleSize+6, summary.ContainerBytes)
	assert.Equal(t, ir.ContainerHash(codec.Encode(flipProgram())), summary.Hash)
	assert.Equal(t, out, summary.Output)
}

func TestCompileSelectsProgram(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "flip.cue", flipSource)
	writeSource(t, src, "idle.cue", `
package programs

program: idle: rules: [{op: "traverse", addr: 0x3000}]
`)
	out := filepath.Join(t.TempDir(), "out.rcx")

	_, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), src, "-o", out)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "choose one with --program")

	stdout, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), src, "-o", out, "--program", "idle")
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "✓ Compiled idle: 1 rule(s), 0 heap byte(s)")
}

func TestCompileInvalidProgram(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "bad.cue", `
package programs

program: bad: rules: [{op: "jump", addr: 1}]
`)

	stdout, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), src, "-o", filepath.Join(t.TempDir(), "x.rcx"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout.String(), "✗ Compilation failed")
	assert.Contains(t, stdout.String(), ErrCodeInvalidRule)
}

func TestCompileInvalidProgramJSON(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "bad.cue", `
package programs

program: bad: rules: [{op: "delta"}]
`)

	stdout, _, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), src, "-o", filepath.Join(t.TempDir(), "x.rcx"))
	require.Error(t, err)

	var all []CLIError
	resp := decodeData(t, stdout.Bytes(), &all)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidRule, resp.Error.Code)
	assert.Len(t, all, 1)
}

func TestCompileMissingPath(t *testing.T) {
	stdout, stderr, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), ErrCodeNotFound)
	assert.Contains(t, stderr.String(), "source path not found")
}

func TestCompileEmptyDirectory(t *testing.T) {
	stdout, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), t.TempDir(), "-o", "x.rcx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error(s)")
	assert.Contains(t, stdout.String(), ErrCodeNoFiles)
	assert.Contains(t, stdout.String(), "no CUE files found")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"rules":              ErrCodeInvalidRule,
		"rules[3].op":        ErrCodeInvalidRule,
		"heap_hex":           ErrCodeInvalidHeap,
		"poke[0].value":      ErrCodeInvalidHeap,
		"mutations[1].index": ErrCodeInvalidMutation,
		"max_iterations":     ErrCodeInvalidLimit,
		"projections[0].to":  ErrCodeInvalidProjection,
		"closures[2].name":   ErrCodeInvalidClosure,
		"cue":                ErrCodeBuildFailed,
		"something":          ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}
