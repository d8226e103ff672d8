package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rcx/internal/codec"
	"github.com/roach88/rcx/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output  string // output file path; empty or "-" writes to stdout
	Program string // program name when the sources define several
}

// CompileSummary describes an emitted container.
type CompileSummary struct {
	Program        string `json:"program"`
	Rules          int    `json:"rules"`
	HeapBytes      int    `json:"heap_bytes"`
	ContainerBytes int    `json:"container_bytes"`
	Hash           string `json:"hash"`
	Output         string `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <source>",
		Short: "Compile a CUE program to an RCX container",
		Long: `Compile a CUE program to a binary RCX container.

The source is a directory of .cue files or a single file. Programs live under
the top-level "program" field:

  program: flip: {
    rules: [{op: "delta", addr: 5}, {op: "fix", addr: 0}]
    poke: [{addr: 5, value: 0x10}]
  }

The container is written to --output, or to stdout when --output is absent
or "-". When the container goes to stdout the summary goes to stderr.

Examples:
  rcx compile ./programs -o flip.rcx
  rcx compile ./programs/flip.cue | rcx run -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output container path (\"-\" for stdout)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "program to compile when the sources define several")

	return cmd
}

func runCompile(opts *CompileOptions, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	toStdout := opts.Output == "" || opts.Output == "-"
	if toStdout {
		// stdout carries the container
		formatter.Writer = formatter.GetErrWriter()
	}

	loadResult, loadErrors := LoadSources(source, LoadModeCollectAll)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, "Compilation failed", loadErrors)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, source)

	spec, err := loadResult.Program(opts.Program)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}
	formatter.VerboseLog("Compiling program: %s", spec.Name)

	data := codec.Encode(spec.Program)
	if toStdout {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing container: %v", err))
		}
	} else if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
	}

	summary := CompileSummary{
		Program:        spec.Name,
		Rules:          len(spec.Program.Rules),
		HeapBytes:      len(spec.Program.Heap),
		ContainerBytes: len(data),
		Hash:           ir.ContainerHash(data),
	}
	if !toStdout {
		summary.Output = opts.Output
	}

	if formatter.JSON() {
		return formatter.Success(summary)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s: %d rule(s), %d heap byte(s)\n", summary.Program, summary.Rules, summary.HeapBytes)
	fmt.Fprintf(w, "  container: %d bytes, %s\n", summary.ContainerBytes, summary.Hash)
	if summary.Output != "" {
		fmt.Fprintf(w, "Wrote container to %s\n", summary.Output)
	}
	return nil
}

// outputCommandError outputs a single command-level error (exit code 2).
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputLoadErrors outputs every source loading or compile error.
func outputLoadErrors(formatter *OutputFormatter, header string, errs []error) error {
	exitErr := NewExitError(ExitCommandError, fmt.Sprintf("%s with %d error(s)", header, len(errs)))

	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseLoadError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✗ %s\n\n", header)
	for _, err := range errs {
		code, message := parseLoadError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(w, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(w, "  %s: %s\n\n", code, message)
	}
	return exitErr
}

// parseLoadError extracts error code and message from an error.
func parseLoadError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
