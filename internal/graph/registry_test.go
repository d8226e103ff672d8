package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rcx/internal/ir"
)

func TestInternMotif_Deduplicates(t *testing.T) {
	r := New()

	a1, err := r.InternMotif("zero")
	require.NoError(t, err)
	a2, err := r.InternMotif("zero")
	require.NoError(t, err)
	b, err := r.InternMotif("succ")
	require.NoError(t, err)

	assert.Equal(t, a1, a2, "same label must intern to the same index")
	assert.NotEqual(t, a1, b, "different labels must intern to different indices")
	assert.Equal(t, 2, r.MotifCount())
}

func TestInternMotif_NFCNormalized(t *testing.T) {
	r := New()
	composed, err := r.InternMotif("caf\u00e9")
	require.NoError(t, err)
	decomposed, err := r.InternMotif("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)

	idx, ok := r.MotifIndex("cafe\u0301")
	assert.True(t, ok)
	assert.Equal(t, composed, idx)
}

func TestInternMotif_Full(t *testing.T) {
	r := New(WithMotifCapacity(2))
	_, err := r.InternMotif("a")
	require.NoError(t, err)
	_, err = r.InternMotif("b")
	require.NoError(t, err)

	// Existing label still resolves when full
	idx, err := r.InternMotif("a")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = r.InternMotif("c")
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrCapacityExceeded)
	var capErr *ir.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "motifs", capErr.Registry)
	assert.Equal(t, 2, capErr.Limit)
}

func TestAddProjection_NotDeduplicated(t *testing.T) {
	r := New()
	p1, err := r.AddProjection(0, 1)
	require.NoError(t, err)
	p2, err := r.AddProjection(0, 1)
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
	assert.Equal(t, 2, r.ProjectionCount())
}

func TestAddProjection_Full(t *testing.T) {
	r := New(WithProjectionCapacity(1))
	_, err := r.AddProjection(0, 1)
	require.NoError(t, err)
	_, err = r.AddProjection(1, 0)
	assert.ErrorIs(t, err, ir.ErrCapacityExceeded)
}

func TestAddClosure_DanglingIsLegal(t *testing.T) {
	r := New(WithClosureCapacity(1))
	idx, err := r.AddClosure("ghost", 42)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = r.AddClosure("again", 0)
	assert.ErrorIs(t, err, ir.ErrCapacityExceeded)
}

func TestProjectionPack(t *testing.T) {
	p := Projection{Source: 3, Target: 7}
	assert.Equal(t, uint64(3)<<32|7, p.Pack())
	assert.Equal(t, p, Unpack(p.Pack()))

	big := Projection{Source: 0xFFFFFFFF, Target: 0}
	assert.Equal(t, uint64(0xFFFFFFFF00000000), big.Pack())
}

func TestLookups_OutOfRange(t *testing.T) {
	r := New()
	_, ok := r.Motif(0)
	assert.False(t, ok)
	_, ok = r.Projection(-1)
	assert.False(t, ok)
	_, ok = r.Closure(5)
	assert.False(t, ok)
	_, ok = r.MotifIndex("missing")
	assert.False(t, ok)
}

func TestFromSpec_DefaultClosures(t *testing.T) {
	spec := ir.GraphSpec{
		Motifs: []string{"a"},
		Projections: []ir.ProjectionSpec{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
		},
	}
	r, err := FromSpec(spec)
	require.NoError(t, err)

	assert.Equal(t, 3, r.MotifCount())
	assert.Equal(t, 2, r.ClosureCount())
	c, ok := r.Closure(1)
	require.True(t, ok)
	assert.Equal(t, Closure{Name: "p1", Projection: 1}, c)
}

func TestFromSpec_ExplicitClosures(t *testing.T) {
	spec := ir.GraphSpec{
		Projections: []ir.ProjectionSpec{{From: "x", To: "y"}},
		Closures:    []ir.ClosureSpec{{Name: "step", Projection: 0}, {Name: "dangling", Projection: 9}},
	}
	r, err := FromSpec(spec)
	require.NoError(t, err)
	assert.Equal(t, 2, r.ClosureCount())
}

func TestFromSpec_CapacityPropagates(t *testing.T) {
	spec := ir.GraphSpec{Motifs: []string{"a", "b", "c"}}
	_, err := FromSpec(spec, WithMotifCapacity(2))
	assert.ErrorIs(t, err, ir.ErrCapacityExceeded)
}
