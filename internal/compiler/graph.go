package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/rcx/internal/ir"
)

// CompileGraph parses a CUE graph value into a GraphSpec.
//
//	graph: reduce: {
//		motifs: ["seed", "sprout", "tree"]
//		projections: [
//			{from: "seed", to: "sprout"},
//			{from: "sprout", to: "tree"},
//		]
//		closures: [{name: "grow", projection: 0}]
//	}
//
// closures is optional; without it every projection gets its own closure
// in declaration order.
func CompileGraph(v cue.Value) (*ir.GraphSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.GraphSpec{Name: labelOf(v)}

	motifsVal := v.LookupPath(cue.ParsePath("motifs"))
	if motifsVal.Exists() {
		iter, err := motifsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			label, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			spec.Motifs = append(spec.Motifs, label)
		}
	}

	projVal := v.LookupPath(cue.ParsePath("projections"))
	if !projVal.Exists() {
		return nil, &CompileError{Field: "projections", Message: "projections is required", Pos: v.Pos()}
	}
	iter, err := projVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		from, err := stringField(iter.Value(), "from", fmt.Sprintf("projections[%d]", i))
		if err != nil {
			return nil, err
		}
		to, err := stringField(iter.Value(), "to", fmt.Sprintf("projections[%d]", i))
		if err != nil {
			return nil, err
		}
		spec.Projections = append(spec.Projections, ir.ProjectionSpec{From: from, To: to})
	}

	if cv := v.LookupPath(cue.ParsePath("closures")); cv.Exists() {
		iter, err := cv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			field := fmt.Sprintf("closures[%d]", i)
			name, err := stringField(iter.Value(), "name", field)
			if err != nil {
				return nil, err
			}
			// Dangling projection indices compile; activation treats them as inert.
			idx, err := intField(iter.Value().LookupPath(cue.ParsePath("projection")), field+".projection", 0, 1<<31-1)
			if err != nil {
				return nil, err
			}
			spec.Closures = append(spec.Closures, ir.ClosureSpec{Name: name, Projection: int(idx)})
		}
	}

	return spec, nil
}

func stringField(v cue.Value, name, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}
