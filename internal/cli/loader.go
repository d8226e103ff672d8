package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rcx/internal/compiler"
	"github.com/roach88/rcx/internal/ir"
)

// LoadMode controls how errors are handled during source loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the programs and graphs found in a CUE source tree.
type LoadResult struct {
	Programs  []ir.ProgramSpec
	Graphs    []ir.GraphSpec
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Program returns the program called name, or the only program when name
// is empty.
func (r *LoadResult) Program(name string) (*ir.ProgramSpec, error) {
	return pick(r.Programs, name, "program", func(p ir.ProgramSpec) string { return p.Name })
}

// Graph returns the graph called name, or the only graph when name is empty.
func (r *LoadResult) Graph(name string) (*ir.GraphSpec, error) {
	return pick(r.Graphs, name, "graph", func(g ir.GraphSpec) string { return g.Name })
}

func pick[T any](items []T, name, kind string, nameOf func(T) string) (*T, error) {
	if name == "" {
		switch len(items) {
		case 0:
			return nil, fmt.Errorf("no %s found", kind)
		case 1:
			return &items[0], nil
		}
		names := make([]string, len(items))
		for i, it := range items {
			names[i] = nameOf(it)
		}
		return nil, fmt.Errorf("%d %ss found (%s): choose one with --%s", len(items), kind, strings.Join(names, ", "), kind)
	}
	for i := range items {
		if nameOf(items[i]) == name {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("%s %q not found", kind, name)
}

// LoadError represents an error that occurred during source loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSources loads CUE sources from path and compiles every entry under
// the top-level `program` and `graph` fields.
//
// path may be a directory (all .cue files of its package) or a single .cue
// file. If mode is LoadModeFailFast, returns on first error. If mode is
// LoadModeCollectAll, collects all errors.
func LoadSources(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("source path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing source path: %v", err)}}
	}

	dir, args := path, []string{"."}
	cueFiles := []string{path}
	if info.IsDir() {
		cueFiles, err = FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(cueFiles) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}}
		}
		dir, args = filepath.Dir(path), []string{"./" + filepath.Base(path)}
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	var errs []error
	failFast := func() bool { return mode == LoadModeFailFast && len(errs) > 0 }

	eachField(value, "program", &errs, func(label string, v cue.Value) {
		spec, err := compiler.CompileProgram(v)
		if err != nil {
			errs = append(errs, convertCompileError(err, "program."+label))
			return
		}
		result.Programs = append(result.Programs, *spec)
	}, failFast)
	if failFast() {
		return result, errs
	}

	eachField(value, "graph", &errs, func(label string, v cue.Value) {
		spec, err := compiler.CompileGraph(v)
		if err != nil {
			errs = append(errs, convertCompileError(err, "graph."+label))
			return
		}
		result.Graphs = append(result.Graphs, *spec)
	}, failFast)
	if failFast() {
		return result, errs
	}

	if len(result.Programs) == 0 && len(result.Graphs) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no programs or graphs found in sources"})
	}

	return result, errs
}

// eachField calls fn for every field of the struct at path, stopping early
// when stop reports true.
func eachField(root cue.Value, path string, errs *[]error, fn func(label string, v cue.Value), stop func() bool) {
	val := root.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return
	}
	iter, err := val.Fields()
	if err != nil {
		*errs = append(*errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating %s: %v", path, err)})
		return
	}
	for iter.Next() {
		fn(iter.Selector().String(), iter.Value())
		if stop() {
			return
		}
	}
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeReadFailed  = "E008" // Input read error

	// Program compile errors
	ErrCodeInvalidRule     = "E010" // Bad rules entry (op, addr)
	ErrCodeInvalidHeap     = "E011" // Bad heap, heap_hex or poke
	ErrCodeInvalidMutation = "E012" // Bad mutations entry
	ErrCodeInvalidLimit    = "E013" // Bad max_iterations

	// Graph compile errors
	ErrCodeInvalidMotif      = "E020" // Bad motifs entry
	ErrCodeInvalidProjection = "E021" // Bad projections entry
	ErrCodeInvalidClosure    = "E022" // Bad closures entry
)

// MapFieldToErrorCode maps a compiler error field to an error code.
// Only the leading field name matters: "rules[2].op" maps like "rules".
func MapFieldToErrorCode(field string) string {
	head := field
	if i := strings.IndexAny(head, "[."); i >= 0 {
		head = head[:i]
	}
	switch head {
	case "rules":
		return ErrCodeInvalidRule
	case "heap", "heap_hex", "poke":
		return ErrCodeInvalidHeap
	case "mutations":
		return ErrCodeInvalidMutation
	case "max_iterations":
		return ErrCodeInvalidLimit
	case "motifs":
		return ErrCodeInvalidMotif
	case "projections":
		return ErrCodeInvalidProjection
	case "closures":
		return ErrCodeInvalidClosure
	case "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
