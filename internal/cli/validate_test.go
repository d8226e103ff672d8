package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rcx/internal/compiler"
	"github.com/roach88/rcx/internal/config"
)

const cycleSource = `
package programs

graph: loop: {
	motifs: ["a", "b"]
	projections: [
		{from: "a", to: "b"},
		{from: "b", to: "a"},
	]
}
`

func TestValidateValidSources(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "flip.cue", flipSource)
	writeSource(t, src, "pipeline.cue", pipelineSource)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), src)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "✓ Validated 1 program(s), 1 graph(s)")
	assert.NotContains(t, stdout.String(), "Warnings:")
}

func TestValidateValidSourcesJSON(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "flip.cue", flipSource)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), src)
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeData(t, stdout.Bytes(), &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, 1, result.Programs)
	assert.Equal(t, 0, result.Graphs)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateProjectionCycleWarns(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "loop.cue", cycleSource)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), src)
	require.NoError(t, err, "warnings alone do not fail validation")
	assert.Contains(t, stdout.String(), "Warnings:")
	assert.Contains(t, stdout.String(), "graph.loop ["+compiler.WarnProjectionCycle+"]")
}

func TestValidateStrictFailsOnWarnings(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "loop.cue", cycleSource)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), src, "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	decodeData(t, stdout.Bytes(), &result)
	assert.False(t, result.Valid)
	assert.Empty(t, result.Errors)
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, compiler.WarnProjectionCycle, result.Warnings[0].Code)
	assert.Equal(t, "graph.loop", result.Warnings[0].Source)
}

func TestValidateEmptyMotifLabel(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "bad.cue", `
package programs

graph: bad: {
	motifs: ["", "b"]
	projections: [{from: "b", to: "b"}]
}
`)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), src)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout.String(), "✗ Validation failed: 1 error(s)")
	assert.Contains(t, stdout.String(), "graph.bad ["+compiler.ErrEmptyMotifLabel+"] motifs[0]")
}

func TestValidateUnknownOpcodeWarns(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "raw.cue", `
package programs

program: raw: rules: [{op: 9, addr: 0}, {op: "fix", addr: 0}]
`)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), src)
	require.NoError(t, err)

	var result ValidationResult
	decodeData(t, stdout.Bytes(), &result)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, compiler.WarnUnknownOpcode, result.Warnings[0].Code)
	assert.Equal(t, "rules[0].op", result.Warnings[0].Field)
}

func TestValidateFingerprintWindowFromConfig(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "far.cue", `
package programs

program: far: rules: [{op: "delta", addr: 0x800}]
`)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), src)
	require.NoError(t, err)
	var result ValidationResult
	decodeData(t, stdout.Bytes(), &result)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, compiler.WarnDeltaOutsideWindow, result.Warnings[0].Code)

	wide := &RootOptions{Format: "json", Config: config.Config{FingerprintWindow: 0x1000}}
	stdout, _, err = execute(NewValidateCommand(wide), src)
	require.NoError(t, err)
	result = ValidationResult{}
	decodeData(t, stdout.Bytes(), &result)
	assert.Empty(t, result.Warnings)
}

func TestValidateCompileErrors(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "bad.cue", `
package programs

graph: bad: motifs: ["a"]
`)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), src)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout.String(), "✗ Validation failed")
	assert.Contains(t, stdout.String(), ErrCodeInvalidProjection)
}
