package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/extcall/internal/compiler"
)

// LoadMode controls how errors are handled during environment loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all validation errors before returning.
	LoadModeCollectAll
)

// LoadResult contains a compiled environment and where it came from.
type LoadResult struct {
	Env       *compiler.Environment
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during environment loading.
type LoadError struct {
	Code    string
	Message string
	Field   string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadEnv loads the CUE package in dir and compiles it into an Environment.
//
// A nil result means nothing could be compiled. A non-nil result with
// errors means the environment compiled but failed validation; in
// LoadModeFailFast only the first validation error is returned.
func LoadEnv(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("environment directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing environment directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
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

	env, err := compiler.CompileEnvironment(value)
	if err != nil {
		return nil, []error{convertCompileError(err)}
	}

	result := &LoadResult{Env: env, CUEValue: value, FileCount: len(cueFiles)}

	var errs []error
	for _, verr := range compiler.Validate(env) {
		errs = append(errs, &LoadError{Code: verr.Code, Message: verr.Message, Field: verr.Field})
		if mode == LoadModeFailFast {
			break
		}
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
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
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Field:   compileErr.Field,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// firstLoadError unwraps the first error of a failed load.
func firstLoadError(errs []error) *LoadError {
	var loadErr *LoadError
	if len(errs) > 0 && errors.As(errs[0], &loadErr) {
		return loadErr
	}
	if len(errs) > 0 {
		return &LoadError{Code: ErrCodeGeneric, Message: errs[0].Error()}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: "unknown load failure"}
}

// Error code constants - unified across all CLI commands. Validation codes
// (E1xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Trace database error
	ErrCodeBadInput    = "E009" // Bad scenario, argument or flag value
	ErrCodeViolation   = "E020" // Contract violation found by check
	ErrCodeScenario    = "E021" // Scenario failed
	ErrCodeCorrupt     = "E022" // Stored trace does not verify

	// Compile errors
	ErrCodeEmptyEnv     = "E010" // No globals and no externals
	ErrCodeGlobalSize   = "E011" // Negative size or space
	ErrCodeGlobalInit   = "E012" // Malformed initializer
	ErrCodeExternalKind = "E013" // Unknown hook kind
	ErrCodeSignature    = "E014" // Malformed signature
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "environment":
		return ErrCodeEmptyEnv
	case strings.HasPrefix(field, "global.") && strings.HasSuffix(field, ".size"):
		return ErrCodeGlobalSize
	case strings.HasPrefix(field, "global.") && strings.Contains(field, ".init"):
		return ErrCodeGlobalInit
	case strings.HasPrefix(field, "external.") && strings.HasSuffix(field, ".kind"):
		return ErrCodeExternalKind
	case strings.HasPrefix(field, "external."):
		return ErrCodeSignature
	default:
		return ErrCodeGeneric
	}
}
