package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/grasplab/pickseq/internal/procfile"
)

// LoadMode controls error handling while loading procedure files.
type LoadMode int

const (
	// LoadModeFailFast stops at the first error.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll keeps going and reports every error. Used by
	// validate so one bad procedure does not hide the rest.
	LoadModeCollectAll
)

// LoadResult is the outcome of loading a procedures directory.
type LoadResult struct {
	Procedures []*procfile.Procedure
	FileCount  int
}

// Find returns the named procedure, or nil.
func (r *LoadResult) Find(name string) *procfile.Procedure {
	for _, p := range r.Procedures {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// LoadError is a positioned procedure loading error.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Loader error codes.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeScanError   = "E002"
	ErrCodeNoFiles     = "E003"
	ErrCodeLoadFailed  = "E004"
	ErrCodeNotFound    = "E005"
	ErrCodeBuildFailed = "E006"
	ErrCodeBadStep     = "E101"
	ErrCodeBadStation  = "E102"
)

// LoadProcedures loads every CUE procedure file under dir.
func LoadProcedures(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("procedures directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing procedures directory: %v", err)}}
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

	result := &LoadResult{FileCount: len(cueFiles)}

	pv := value.LookupPath(cue.ParsePath("procedure"))
	if !pv.Exists() {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no procedures found"}}
	}
	iter, iterErr := pv.Fields()
	if iterErr != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating procedures: %v", iterErr)}}
	}

	var errs []error
	for iter.Next() {
		proc, compileErr := procfile.Compile(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "procedure."+iter.Selector().String()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Procedures = append(result.Procedures, proc)
	}
	if len(result.Procedures) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no procedures found"})
	}
	return result, errs
}

// FindCUEFiles walks dir and returns every .cue file path.
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

func convertCompileError(err error, context string) *LoadError {
	var cerr *procfile.CompileError
	if errors.As(err, &cerr) {
		return &LoadError{
			Code:    mapFieldToErrorCode(cerr.Field),
			Message: fmt.Sprintf("%s: %s", cerr.Field, cerr.Message),
			Pos:     cerr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%s: %v", context, err)}
}

func mapFieldToErrorCode(field string) string {
	switch {
	case field == "station" || field == "station.robot" || field == "station.frames":
		return ErrCodeBadStation
	case field == "steps" || (len(field) > 5 && field[:5] == "steps"):
		return ErrCodeBadStep
	default:
		return ErrCodeGeneric
	}
}
