package procfile

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a positioned procedure-file error.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile parses a CUE value into a Procedure.
//
// The value should be the procedure struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`procedure: pick: { ... }`)
//	proc, err := procfile.Compile(v.LookupPath(cue.ParsePath("procedure.pick")))
func Compile(v cue.Value) (*Procedure, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	proc := &Procedure{}

	// Procedure name comes from the struct label.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		proc.Name = labels[len(labels)-1].String()
	}

	station, err := parseStation(v)
	if err != nil {
		return nil, err
	}
	proc.Station = station

	steps, err := parseSteps(v)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, &CompileError{Field: "steps", Message: "at least one step is required", Pos: v.Pos()}
	}
	proc.Steps = steps

	if err := checkSteps(proc, v.Pos()); err != nil {
		return nil, err
	}
	return proc, nil
}

func parseStation(v cue.Value) (Station, error) {
	st := Station{}

	stVal := v.LookupPath(cue.ParsePath("station"))
	if !stVal.Exists() {
		return st, &CompileError{Field: "station", Message: "station is required", Pos: v.Pos()}
	}

	robotVal := stVal.LookupPath(cue.ParsePath("robot"))
	if !robotVal.Exists() {
		return st, &CompileError{Field: "station.robot", Message: "robot is required", Pos: stVal.Pos()}
	}
	robot, err := robotVal.String()
	if err != nil {
		return st, formatCUEError(err)
	}
	st.Robot = robot

	if s, err := optionalString(stVal, "gripper"); err != nil {
		return st, err
	} else {
		st.Gripper = s
	}
	if s, err := optionalString(stVal, "tool"); err != nil {
		return st, err
	} else {
		st.Tool = s
	}

	frames, err := parseFrames(stVal)
	if err != nil {
		return st, err
	}
	st.Frames = frames

	if st.Targets, err = stringList(stVal, "targets"); err != nil {
		return st, err
	}
	if st.Blocks, err = stringList(stVal, "blocks"); err != nil {
		return st, err
	}
	return st, nil
}

// parseFrames accepts each frame entry either as a bare string (optional
// lookup, the original scripts' behavior) or as {name, lookup}.
func parseFrames(stVal cue.Value) ([]FrameRef, error) {
	framesVal := stVal.LookupPath(cue.ParsePath("frames"))
	if !framesVal.Exists() {
		return nil, nil
	}
	iter, err := framesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var frames []FrameRef
	for iter.Next() {
		elem := iter.Value()
		if s, err := elem.String(); err == nil {
			frames = append(frames, FrameRef{Name: s, Lookup: "optional"})
			continue
		}

		nameVal := elem.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{Field: "station.frames", Message: "frame entry needs a name", Pos: elem.Pos()}
		}
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ref := FrameRef{Name: name, Lookup: "optional"}

		lookupVal := elem.LookupPath(cue.ParsePath("lookup"))
		if lookupVal.Exists() {
			kind, err := lookupVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if kind != "optional" && kind != "required" {
				return nil, &CompileError{
					Field:   "station.frames",
					Message: fmt.Sprintf("lookup must be \"optional\" or \"required\", got %q", kind),
					Pos:     lookupVal.Pos(),
				}
			}
			ref.Lookup = kind
		}
		frames = append(frames, ref)
	}
	return frames, nil
}

func parseSteps(v cue.Value) ([]Step, error) {
	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return nil, &CompileError{Field: "steps", Message: "steps is required", Pos: v.Pos()}
	}
	iter, err := stepsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var steps []Step
	idx := 0
	for iter.Next() {
		elem := iter.Value()
		step, err := parseStep(elem, idx)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
		idx++
	}
	return steps, nil
}

func parseStep(elem cue.Value, idx int) (Step, error) {
	field := fmt.Sprintf("steps[%d]", idx)

	doVal := elem.LookupPath(cue.ParsePath("do"))
	if !doVal.Exists() {
		return Step{}, &CompileError{Field: field, Message: "step needs a \"do\" kind", Pos: elem.Pos()}
	}
	do, err := doVal.String()
	if err != nil {
		return Step{}, formatCUEError(err)
	}
	step := Step{Kind: StepKind(do)}
	if !ValidKind(step.Kind) {
		return Step{}, &CompileError{Field: field, Message: fmt.Sprintf("unknown step kind %q", do), Pos: doVal.Pos()}
	}

	if step.On, err = optionalString(elem, "on"); err != nil {
		return Step{}, err
	}
	if step.On != "" && step.On != OnRobot && step.On != OnGripper {
		return Step{}, &CompileError{Field: field, Message: fmt.Sprintf("on must be %q or %q, got %q", OnRobot, OnGripper, step.On), Pos: elem.Pos()}
	}
	if step.To, err = optionalString(elem, "to"); err != nil {
		return Step{}, err
	}
	if step.Frame, err = optionalString(elem, "frame"); err != nil {
		return Step{}, err
	}

	valueVal := elem.LookupPath(cue.ParsePath("value"))
	if valueVal.Exists() {
		if step.Value, err = valueVal.Float64(); err != nil {
			return Step{}, formatCUEError(err)
		}
	}

	jointsVal := elem.LookupPath(cue.ParsePath("joints"))
	if jointsVal.Exists() {
		if err := jointsVal.Decode(&step.Joints); err != nil {
			return Step{}, formatCUEError(err)
		}
	}

	return step, validateStep(step, field, elem.Pos())
}

// validateStep rejects field combinations the runner could not execute.
func validateStep(s Step, field string, pos token.Pos) error {
	fail := func(msg string) error {
		return &CompileError{Field: field, Message: msg, Pos: pos}
	}
	switch s.Kind {
	case StepSetSpeed, StepSetAcceleration, StepSetJointSpeed, StepSetJointAcceleration:
		if s.Value <= 0 {
			return fail(fmt.Sprintf("%s needs a positive value", s.Kind))
		}
	case StepSetFrame:
		if s.Frame == "" {
			return fail("set_frame needs a frame")
		}
	case StepMoveJoint:
		if s.To == "" && len(s.Joints) == 0 {
			return fail("move_joint needs a target or joints")
		}
		if s.To != "" && len(s.Joints) > 0 {
			return fail("move_joint takes a target or joints, not both")
		}
	case StepMoveLinear:
		if s.To == "" {
			return fail("move_linear needs a target")
		}
	case StepDetach:
		if s.Frame == "" {
			return fail("detach needs a release frame")
		}
	case StepPause:
		if s.Value <= 0 {
			return fail("pause needs a positive duration in seconds")
		}
	}
	return nil
}

// checkSteps verifies cross-references between the step list and the
// station: gripper steps need a gripper, attach/detach need a tool, reset
// needs blocks to restore.
func checkSteps(p *Procedure, pos token.Pos) error {
	for i, s := range p.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		switch {
		case (s.Kind == StepOpen || s.Kind == StepClose || s.On == OnGripper) && p.Station.Gripper == "":
			return &CompileError{Field: field, Message: fmt.Sprintf("%s requires station.gripper", s.Kind), Pos: pos}
		case (s.Kind == StepAttach || s.Kind == StepDetach) && p.Station.Tool == "":
			return &CompileError{Field: field, Message: fmt.Sprintf("%s requires station.tool", s.Kind), Pos: pos}
		case s.Kind == StepReset && len(p.Station.Blocks) == 0:
			return &CompileError{Field: field, Message: "reset requires station.blocks", Pos: pos}
		}
	}
	return nil
}

func optionalString(v cue.Value, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, name string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil, nil
	}
	var out []string
	if err := fv.Decode(&out); err != nil {
		return nil, formatCUEError(err)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{Field: "cue", Message: firstErr.Error(), Pos: positions[0]}
	}
	return err
}
