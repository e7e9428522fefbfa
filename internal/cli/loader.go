package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/plaited/behavioral/internal/compiler"
	"github.com/plaited/behavioral/internal/ir"
)

// LoadResult contains the programs compiled from a CUE file or directory.
type LoadResult struct {
	Programs  []ir.ProgramSpec
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred while loading programs.
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

// LoadPrograms compiles every program declared at path, a .cue file or a
// directory holding one CUE package. Compile errors are collected so all of
// them can be reported; a nil result means nothing could be loaded.
func LoadPrograms(path string) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}}
	}

	fileCount := 1
	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(cueFiles) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
		fileCount = len(cueFiles)
	}

	value, err := compiler.LoadValue(path)
	if err != nil {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return nil, []error{convertCompileError(err)}
		}
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}}
	}

	result := &LoadResult{FileCount: fileCount}
	specs, compileErrs := compiler.Programs(value)
	result.Programs = specs

	errs := make([]error, len(compileErrs))
	for i, err := range compileErrs {
		errs[i] = convertCompileError(err)
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with
// position info. The "program.<name>: " prefix added by compiler.Programs
// is kept.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		prefix := strings.TrimSuffix(err.Error(), compileErr.Error())
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s%s: %s", prefix, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands. Program
// validation codes (E100-E199) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoPrograms  = "E008" // No program declared

	// Program structure errors
	ErrCodeThread      = "E010" // Malformed thread
	ErrCodeStep        = "E011" // Malformed step
	ErrCodeEvent       = "E012" // Malformed event reference
	ErrCodeInvalidType = "E013" // Unsupported payload value (float, null)

	// Run errors
	ErrCodeScenario       = "E020" // Scenario failed to load or start
	ErrCodeInvalidTrigger = "E021" // Malformed trigger argument
	ErrCodeDatabase       = "E030" // Trace store error
	ErrCodeRunNotFound    = "E031" // Run id not in the trace store
	ErrCodeTestFailed     = "E_TEST_FAILED"
	ErrCodeDeterminism    = "E_DETERMINISM"
)

// MapFieldToErrorCode maps a compiler error field such as
// "threads[2].steps[0].request[1].payload" to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "program":
		return ErrCodeNoPrograms
	case strings.Contains(field, "payload"):
		return ErrCodeInvalidType
	case strings.Contains(field, ".request"), strings.Contains(field, ".wait_for"),
		strings.Contains(field, ".block"), strings.Contains(field, ".interrupt"):
		return ErrCodeEvent
	case strings.Contains(field, ".steps"):
		return ErrCodeStep
	case strings.HasPrefix(field, "threads"):
		return ErrCodeThread
	default:
		return ErrCodeGeneric
	}
}
