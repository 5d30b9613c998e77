package procfile

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// CompileAll extracts every procedure declared under the top-level
// "procedure" struct, in declaration order.
func CompileAll(v cue.Value) ([]*Procedure, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	pv := v.LookupPath(cue.ParsePath("procedure"))
	if !pv.Exists() {
		return nil, &CompileError{Field: "procedure", Message: "no procedures declared", Pos: v.Pos()}
	}
	iter, err := pv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var procs []*Procedure
	for iter.Next() {
		proc, err := Compile(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("procedure %q: %w", iter.Selector().String(), err)
		}
		procs = append(procs, proc)
	}
	if len(procs) == 0 {
		return nil, &CompileError{Field: "procedure", Message: "no procedures declared", Pos: pv.Pos()}
	}
	return procs, nil
}

// CompileSource compiles CUE source text. Used by the harness for inline
// procedures and by tests.
func CompileSource(src string) ([]*Procedure, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	return CompileAll(v)
}
