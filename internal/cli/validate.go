package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rcx/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat warnings as failures
}

// Diagnostic is one validation error or warning, tagged with its source.
type Diagnostic struct {
	Source  string   `json:"source"` // "program.<name>" or "graph.<name>"
	Code    string   `json:"code"`
	Field   string   `json:"field,omitempty"`
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool         `json:"valid"`
	Programs int          `json:"programs"`
	Graphs   int          `json:"graphs"`
	Errors   []Diagnostic `json:"errors,omitempty"`
	Warnings []Diagnostic `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <source>",
		Short: "Check CUE programs and graphs without running them",
		Long: `Compile every program and graph in the sources and check them against
the engine and registry capacities.

Errors mean the program or graph would fail to load. Warnings describe
sources that load but probably misbehave: rules that can never fire,
deltas outside the fingerprint window, projection cycles.

Exit codes:
  0 - Valid (warnings allowed unless --strict)
  1 - Warnings found with --strict
  2 - Compile or validation errors`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on warnings")

	return cmd
}

func runValidate(opts *ValidateOptions, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadSources(source, LoadModeCollectAll)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, "Validation failed", loadErrors)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, source)

	lim := compiler.DefaultLimits()
	if opts.Config.FingerprintWindow > 0 {
		lim.FingerprintWindow = opts.Config.FingerprintWindow
	}

	result := ValidationResult{
		Programs: len(loadResult.Programs),
		Graphs:   len(loadResult.Graphs),
	}
	for i := range loadResult.Programs {
		spec := &loadResult.Programs[i]
		formatter.VerboseLog("Validating program: %s", spec.Name)
		errs, warns := compiler.ValidateProgram(spec, lim)
		result.add("program."+spec.Name, errs, warns)
	}
	for i := range loadResult.Graphs {
		spec := &loadResult.Graphs[i]
		formatter.VerboseLog("Validating graph: %s", spec.Name)
		errs, warns := compiler.ValidateGraph(spec, lim)
		result.add("graph."+spec.Name, errs, warns)
	}
	result.Valid = len(result.Errors) == 0 && (!opts.Strict || len(result.Warnings) == 0)

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, result)
	}

	switch {
	case len(result.Errors) > 0:
		return NewExitError(ExitCommandError, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	case !result.Valid:
		return NewExitError(ExitFailure, fmt.Sprintf("validation found %d warning(s)", len(result.Warnings)))
	}
	return nil
}

func (r *ValidationResult) add(source string, errs []compiler.ValidationError, warns []compiler.Warning) {
	for _, e := range errs {
		r.Errors = append(r.Errors, Diagnostic{Source: source, Code: e.Code, Field: e.Field, Message: e.Message})
	}
	for _, w := range warns {
		r.Warnings = append(r.Warnings, Diagnostic{Source: source, Code: w.Code, Field: w.Field, Message: w.Message, Path: w.Path})
	}
}

func outputValidateText(formatter *OutputFormatter, r ValidationResult) {
	w := formatter.Writer
	if len(r.Errors) == 0 {
		fmt.Fprintf(w, "✓ Validated %d program(s), %d graph(s)\n", r.Programs, r.Graphs)
	} else {
		fmt.Fprintf(w, "✗ Validation failed: %d error(s)\n", len(r.Errors))
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, d := range r.Errors {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, d := range r.Warnings {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
}

func (d Diagnostic) String() string {
	if d.Field != "" {
		return fmt.Sprintf("%s [%s] %s: %s", d.Source, d.Code, d.Field, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s", d.Source, d.Code, d.Message)
}
