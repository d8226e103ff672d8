package compiler

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/rcx/internal/ir"
)

// AnalyzeProjectionCycles reports every cycle in the projection graph.
//
// Evolution over a cyclic projection set stops with a cycle error instead of
// reaching a fixpoint, so each strongly connected component with more than
// one motif, and each self-projection, yields a W220 warning. Path lists the
// motif labels around the cycle and repeats the first label at the end.
//
// Output is deterministic: components are reported in order of their
// smallest label.
func AnalyzeProjectionCycles(spec *ir.GraphSpec) []Warning {
	g := buildProjectionGraph(spec)
	if len(g) == 0 {
		return nil
	}

	var warns []Warning
	for _, scc := range tarjanSCC(g) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], g) {
			continue
		}
		path := reconstructCyclePath(scc, g)
		warns = append(warns, Warning{
			Code:    WarnProjectionCycle,
			Field:   "projections",
			Message: "projection cycle: " + strings.Join(path, " -> "),
			Path:    path,
		})
	}
	return warns
}

// projectionGraph maps a motif label to the labels it projects onto, each
// adjacency list sorted and de-duplicated.
type projectionGraph map[string][]string

func buildProjectionGraph(spec *ir.GraphSpec) projectionGraph {
	g := make(projectionGraph)
	for _, p := range spec.Projections {
		from, to := norm.NFC.String(p.From), norm.NFC.String(p.To)
		g[from] = append(g[from], to)
		if _, ok := g[to]; !ok {
			g[to] = nil
		}
	}
	for k, out := range g {
		slices.Sort(out)
		g[k] = slices.Compact(out)
	}
	return g
}

func (g projectionGraph) nodes() []string {
	out := make([]string, 0, len(g))
	for k := range g {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func hasSelfLoop(node string, g projectionGraph) bool {
	_, found := slices.BinarySearch(g[node], node)
	return found
}

// tarjanSCC returns the strongly connected components of g. Members of each
// component are sorted, and components are ordered by their first member.
func tarjanSCC(g projectionGraph) [][]string {
	var (
		index   int
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var connect func(string)
	connect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, seen := indices[w]; !seen {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] != indices[v] {
			return
		}
		var scc []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		slices.Sort(scc)
		sccs = append(sccs, scc)
	}

	for _, n := range g.nodes() {
		if _, seen := indices[n]; !seen {
			connect(n)
		}
	}

	slices.SortFunc(sccs, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return sccs
}

// reconstructCyclePath returns the shortest cycle through the smallest
// member of scc, found by breadth-first search over edges that stay inside
// the component. A self-loop yields [a, a].
func reconstructCyclePath(scc []string, g projectionGraph) []string {
	if len(scc) == 0 {
		return nil
	}
	start := scc[0]
	if len(scc) == 1 {
		return []string{start, start}
	}

	member := make(map[string]bool, len(scc))
	for _, n := range scc {
		member[n] = true
	}

	parent := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range g[v] {
			if !member[w] {
				continue
			}
			if w == start && v != start {
				return cyclePath(parent, v, start)
			}
			if _, seen := parent[w]; !seen {
				parent[w] = v
				queue = append(queue, w)
			}
		}
	}
	return []string{start}
}

// cyclePath rebuilds start -> ... -> last -> start from BFS parent links.
func cyclePath(parent map[string]string, last, start string) []string {
	var rev []string
	for v := last; v != start; v = parent[v] {
		rev = append(rev, v)
	}
	path := make([]string, 0, len(rev)+2)
	path = append(path, start)
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return append(path, start)
}
