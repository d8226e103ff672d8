package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rcx/internal/codec"
	"github.com/roach88/rcx/internal/engine"
	"github.com/roach88/rcx/internal/ir"
)

// RuleInfo describes one decoded rule.
type RuleInfo struct {
	Index int    `json:"index"`
	Op    string `json:"op"`
	Addr  uint32 `json:"addr"`
	Known bool   `json:"known"`
}

// InspectResult describes a decoded container.
type InspectResult struct {
	ContainerBytes int        `json:"container_bytes"`
	Hash           string     `json:"hash"`
	Rules          []RuleInfo `json:"rules"`
	HeapBytes      int        `json:"heap_bytes"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Decode a container and list its rules",
		Long: `Decode an RCX container and list its rules and heap size.

Use "-" to read the container from stdin. A container that fails to decode
exits with code 2.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runInspect(opts *RootOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	data, err := readInput(input, cmd.InOrStdin())
	if err != nil {
		return outputCommandError(formatter, ErrCodeReadFailed, err.Error())
	}

	prog, err := codec.Decode(data)
	if err != nil {
		return outputCommandError(formatter, string(engine.ErrCodeLoadFailed), err.Error())
	}

	result := InspectResult{
		ContainerBytes: len(data),
		Hash:           ir.ContainerHash(data),
		Rules:          make([]RuleInfo, len(prog.Rules)),
		HeapBytes:      len(prog.Heap),
	}
	for i, r := range prog.Rules {
		result.Rules[i] = RuleInfo{Index: i, Op: r.Op.String(), Addr: r.Addr, Known: r.Op.Known()}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Container: %d bytes, %s\n", result.ContainerBytes, result.Hash)
	fmt.Fprintf(w, "Rules: %d\n", len(prog.Rules))
	for i, r := range prog.Rules {
		suffix := ""
		if !r.Op.Known() {
			suffix = " (no-op)"
		}
		fmt.Fprintf(w, "  [%d] %s%s\n", i, r, suffix)
	}
	fmt.Fprintf(w, "Heap: %d byte(s)\n", result.HeapBytes)
	return nil
}
