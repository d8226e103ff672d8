package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rcx/internal/graph"
)

// EvolveOptions holds flags for the evolve command.
type EvolveOptions struct {
	*RootOptions
	Start string // start motif label
	Graph string // graph name when the sources define several
}

// EvolveStep is one adopted rewrite, with labels resolved.
type EvolveStep struct {
	Pass    int    `json:"pass"`
	Closure string `json:"closure"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// EvolveResult is the graph-level evolution of one start motif.
type EvolveResult struct {
	Graph  string       `json:"graph"`
	Start  string       `json:"start"`
	Final  string       `json:"final"`
	Passes int          `json:"passes"`
	Steps  []EvolveStep `json:"steps"`
	Cycle  []string     `json:"cycle,omitempty"`
}

// NewEvolveCommand creates the evolve command.
func NewEvolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "evolve <source>",
		Short: "Evolve a motif through a CUE graph's closures",
		Long: `Build the motif registry from a CUE graph and evolve a start motif.

Every pass activates each closure in registration order against the current
motif and adopts a rewrite immediately. Evolution stops after a pass that
changes nothing. A pass that would start from the same motif as an earlier
pass stops evolution with a cycle.

  graph: pipeline: {
    motifs: ["raw", "clean", "done"]
    projections: [{from: "raw", to: "clean"}, {from: "clean", to: "done"}]
  }

Exit codes:
  0 - Reached a fixpoint
  1 - Stopped on a cycle
  2 - Command error (bad sources, unknown start motif)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Start, "start", "", "start motif label (required)")
	_ = cmd.MarkFlagRequired("start")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "graph to evolve when the sources define several")

	return cmd
}

func runEvolve(opts *EvolveOptions, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadSources(source, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, "Loading graph failed", loadErrors)
	}
	spec, err := loadResult.Graph(opts.Graph)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	reg, err := graph.FromSpec(*spec)
	if err != nil {
		return outputCommandError(formatter, ErrCodeInvalidProjection, err.Error())
	}
	start, ok := reg.MotifIndex(opts.Start)
	if !ok {
		return outputCommandError(formatter, ErrCodeInvalidMotif, fmt.Sprintf("unknown start motif %q", opts.Start))
	}
	formatter.VerboseLog("Graph %s: %d motif(s), %d projection(s), %d closure(s)",
		spec.Name, reg.MotifCount(), reg.ProjectionCount(), reg.ClosureCount())

	ev, evErr := reg.Evolve(start)
	var cycleErr *graph.CycleError
	if evErr != nil && !errors.As(evErr, &cycleErr) {
		return outputCommandError(formatter, ErrCodeGeneric, evErr.Error())
	}

	result := EvolveResult{
		Graph:  spec.Name,
		Start:  motifLabel(reg, ev.Start),
		Final:  motifLabel(reg, ev.Final),
		Passes: ev.Passes,
		Steps:  make([]EvolveStep, len(ev.Steps)),
	}
	for i, s := range ev.Steps {
		result.Steps[i] = EvolveStep{
			Pass:    s.Pass,
			Closure: closureName(reg, s.Closure),
			From:    motifLabel(reg, s.From),
			To:      motifLabel(reg, s.To),
		}
	}
	if cycleErr != nil {
		for _, m := range cycleErr.Path {
			result.Cycle = append(result.Cycle, motifLabel(reg, m))
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputEvolveText(formatter, result)
	}

	if cycleErr != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("evolution cycle: %s", strings.Join(result.Cycle, " -> ")))
	}
	return nil
}

func motifLabel(reg *graph.Registry, idx int) string {
	if label, ok := reg.Motif(idx); ok {
		return label
	}
	return fmt.Sprintf("#%d", idx)
}

func closureName(reg *graph.Registry, idx int) string {
	if c, ok := reg.Closure(idx); ok && c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("#%d", idx)
}

func outputEvolveText(formatter *OutputFormatter, r EvolveResult) {
	w := formatter.Writer
	if r.Cycle != nil {
		fmt.Fprintf(w, "✗ %s: cycle after %d pass(es): %s\n", r.Graph, r.Passes, strings.Join(r.Cycle, " -> "))
	} else {
		fmt.Fprintf(w, "✓ %s: %s -> %s in %d pass(es)\n", r.Graph, r.Start, r.Final, r.Passes)
	}
	for _, s := range r.Steps {
		fmt.Fprintf(w, "  pass %d: %s via %s -> %s\n", s.Pass, s.From, s.Closure, s.To)
	}
}
