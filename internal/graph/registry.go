package graph

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/rcx/internal/ir"
)

// DefaultCapacity bounds each registry table unless overridden.
const DefaultCapacity = 1024

// Projection is a directed edge between two motif indices.
type Projection struct {
	Source int
	Target int
}

// Pack encodes the projection as a single 64-bit value: high half source,
// low half target.
func (p Projection) Pack() uint64 {
	return uint64(uint32(p.Source))<<32 | uint64(uint32(p.Target))
}

// Unpack is the inverse of Projection.Pack.
func Unpack(v uint64) Projection {
	return Projection{
		Source: int(uint32(v >> 32)),
		Target: int(uint32(v)),
	}
}

// Closure is a named reference to one projection index. The binding never
// changes after registration.
type Closure struct {
	Name       string
	Projection int
}

// Registry owns the motif, projection and closure tables of one graph.
// Not safe for concurrent use.
type Registry struct {
	motifCap      int
	projectionCap int
	closureCap    int

	labels      []string
	labelIndex  map[string]int
	projections []uint64 // packed, see Projection.Pack
	closures    []Closure
}

// Option configures a Registry.
type Option func(*Registry)

// WithMotifCapacity bounds the motif table.
func WithMotifCapacity(n int) Option {
	return func(r *Registry) { r.motifCap = n }
}

// WithProjectionCapacity bounds the projection table.
func WithProjectionCapacity(n int) Option {
	return func(r *Registry) { r.projectionCap = n }
}

// WithClosureCapacity bounds the closure table.
func WithClosureCapacity(n int) Option {
	return func(r *Registry) { r.closureCap = n }
}

// New creates an empty registry. Every table defaults to DefaultCapacity.
func New(opts ...Option) *Registry {
	r := &Registry{
		motifCap:      DefaultCapacity,
		projectionCap: DefaultCapacity,
		closureCap:    DefaultCapacity,
		labelIndex:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InternMotif returns the index for label, appending a new motif when the
// label has not been seen. Labels are NFC-normalized first so visually
// identical labels intern to the same motif.
func (r *Registry) InternMotif(label string) (int, error) {
	label = norm.NFC.String(label)
	if idx, ok := r.labelIndex[label]; ok {
		return idx, nil
	}
	if len(r.labels) >= r.motifCap {
		return -1, &ir.CapacityError{Registry: "motifs", Limit: r.motifCap}
	}
	idx := len(r.labels)
	r.labels = append(r.labels, label)
	r.labelIndex[label] = idx
	return idx, nil
}

// AddProjection appends a source -> target edge. Identical edges are stored
// as distinct entries. Endpoints are not validated.
func (r *Registry) AddProjection(source, target int) (int, error) {
	if len(r.projections) >= r.projectionCap {
		return -1, &ir.CapacityError{Registry: "projections", Limit: r.projectionCap}
	}
	r.projections = append(r.projections, Projection{Source: source, Target: target}.Pack())
	return len(r.projections) - 1, nil
}

// AddClosure registers a named reference to a projection. The projection
// index is validated at activation time, not here: a dangling closure is
// legal to create and fails safely when used.
func (r *Registry) AddClosure(name string, projection int) (int, error) {
	if len(r.closures) >= r.closureCap {
		return -1, &ir.CapacityError{Registry: "closures", Limit: r.closureCap}
	}
	r.closures = append(r.closures, Closure{Name: name, Projection: projection})
	return len(r.closures) - 1, nil
}

// Motif returns the label at idx.
func (r *Registry) Motif(idx int) (string, bool) {
	if idx < 0 || idx >= len(r.labels) {
		return "", false
	}
	return r.labels[idx], true
}

// MotifIndex looks up a label without interning it.
func (r *Registry) MotifIndex(label string) (int, bool) {
	idx, ok := r.labelIndex[norm.NFC.String(label)]
	return idx, ok
}

// Projection returns the unpacked projection at idx.
func (r *Registry) Projection(idx int) (Projection, bool) {
	if idx < 0 || idx >= len(r.projections) {
		return Projection{}, false
	}
	return Unpack(r.projections[idx]), true
}

// Closure returns the closure at idx.
func (r *Registry) Closure(idx int) (Closure, bool) {
	if idx < 0 || idx >= len(r.closures) {
		return Closure{}, false
	}
	return r.closures[idx], true
}

// MotifCount returns the number of registered motifs.
func (r *Registry) MotifCount() int { return len(r.labels) }

// ProjectionCount returns the number of registered projections.
func (r *Registry) ProjectionCount() int { return len(r.projections) }

// ClosureCount returns the number of registered closures.
func (r *Registry) ClosureCount() int { return len(r.closures) }

// FromSpec builds a registry from a compiled graph spec.
//
// Motifs are interned in declaration order, then any labels first mentioned
// by a projection. When the GraphSpec declares no closures, one closure per
// projection is registered, named after its position.
func FromSpec(spec ir.GraphSpec, opts ...Option) (*Registry, error) {
	r := New(opts...)

	for _, label := range spec.Motifs {
		if _, err := r.InternMotif(label); err != nil {
			return nil, fmt.Errorf("intern motif %q: %w", label, err)
		}
	}

	for i, p := range spec.Projections {
		src, err := r.InternMotif(p.From)
		if err != nil {
			return nil, fmt.Errorf("projection %d: intern %q: %w", i, p.From, err)
		}
		tgt, err := r.InternMotif(p.To)
		if err != nil {
			return nil, fmt.Errorf("projection %d: intern %q: %w", i, p.To, err)
		}
		if _, err := r.AddProjection(src, tgt); err != nil {
			return nil, fmt.Errorf("projection %d: %w", i, err)
		}
	}

	if len(spec.Closures) == 0 {
		for i := range spec.Projections {
			if _, err := r.AddClosure(fmt.Sprintf("p%d", i), i); err != nil {
				return nil, fmt.Errorf("closure for projection %d: %w", i, err)
			}
		}
		return r, nil
	}

	for _, c := range spec.Closures {
		if _, err := r.AddClosure(c.Name, c.Projection); err != nil {
			return nil, fmt.Errorf("closure %q: %w", c.Name, err)
		}
	}
	return r, nil
}
