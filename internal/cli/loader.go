package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/recman/internal/compiler"
	"github.com/roach88/recman/internal/ir"
)

// LoadMode controls how errors are handled during schema loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading a schema directory.
type LoadResult struct {
	Entities  []ir.EntityDescriptor
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Catalog indexes the loaded entities.
func (r *LoadResult) Catalog() ir.Catalog {
	return ir.NewCatalog(r.Entities...)
}

// LoadError represents an error that occurred during schema loading.
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

// LoadSchema loads and compiles CUE entity schemas from a directory.
// Descriptors are compiled but not validated against each other; callers
// run compiler.ValidateCatalog.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadSchema(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	// Find CUE files
	cueFiles, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.BuildDir(dir)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeBuildFailed, "building CUE value")}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	entitiesVal := value.LookupPath(cue.ParsePath(compiler.EntityPath))
	if !entitiesVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no entities found in schema"}}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating entities: %v", err)}}
	}
	for iter.Next() {
		desc, compileErr := compiler.CompileEntity(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, ErrCodeGeneric, "entity."+iter.Selector().String()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Entities = append(result.Entities, *desc)
	}

	if len(result.Entities) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no entities found in schema"})
	}

	return result, errs
}

// LoadCatalog loads a schema directory and validates it, failing on the
// first problem. Commands that need a working catalog use this.
func LoadCatalog(dir string) (ir.Catalog, error) {
	result, errs := LoadSchema(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	catalog := result.Catalog()
	if verrs := compiler.ValidateCatalog(catalog); len(verrs) > 0 {
		return nil, &LoadError{Code: verrs[0].Code, Message: verrs[0].Error()}
	}
	return catalog, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, fallback, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := MapFieldToErrorCode(compileErr.Field)
		if code == ErrCodeGeneric {
			code = fallback
		}
		return &LoadError{
			Code:    code,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    fallback,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
// Schema validation codes (E2xx) are defined by the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeBadInput    = "E008" // Malformed command argument (JSON, id)
	ErrCodeTestFailed  = "E009" // One or more scenarios failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "type":
		return compiler.ErrUnknownFieldType
	case field == "table":
		return compiler.ErrInvalidIdentifier
	case strings.HasSuffix(field, ".target"):
		return compiler.ErrUnknownTarget
	case strings.HasSuffix(field, ".kind"):
		return compiler.ErrInvalidRelationKind
	case field == "cue":
		return ErrCodeLoadFailed
	default:
		return ErrCodeGeneric
	}
}
