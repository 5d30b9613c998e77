// Package procfile defines the declarative procedure format and compiles it
// from CUE. A procedure is data: the station registry (which named items the
// run needs and how strict each lookup is) plus the ordered step list the
// sequencer executes. The three original cell scripts are shipped as
// procedure files under procedures/.
package procfile

import "fmt"

// StepKind enumerates the declarative step vocabulary.
type StepKind string

const (
	StepSetSpeed             StepKind = "set_speed"
	StepSetAcceleration      StepKind = "set_acceleration"
	StepSetJointSpeed        StepKind = "set_joint_speed"
	StepSetJointAcceleration StepKind = "set_joint_acceleration"
	StepSetFrame             StepKind = "set_frame"
	StepMoveJoint            StepKind = "move_joint"
	StepMoveLinear           StepKind = "move_linear"
	StepOpen                 StepKind = "open"
	StepClose                StepKind = "close"
	StepAttach               StepKind = "attach"
	StepDetach               StepKind = "detach"
	StepPause                StepKind = "pause"
	StepReset                StepKind = "reset"
)

var validKinds = map[StepKind]struct{}{
	StepSetSpeed: {}, StepSetAcceleration: {}, StepSetJointSpeed: {},
	StepSetJointAcceleration: {}, StepSetFrame: {}, StepMoveJoint: {},
	StepMoveLinear: {}, StepOpen: {}, StepClose: {}, StepAttach: {},
	StepDetach: {}, StepPause: {}, StepReset: {},
}

// ValidKind reports whether k is part of the step vocabulary.
func ValidKind(k StepKind) bool {
	_, ok := validKinds[k]
	return ok
}

// Actors a step can address.
const (
	OnRobot   = "robot"
	OnGripper = "gripper"
)

// Step is one declarative instruction. Which fields are meaningful depends
// on Kind; Compile rejects combinations the runner could not execute.
type Step struct {
	Kind StepKind

	// On selects the actor for parameter and move steps: "robot" (default)
	// or "gripper". Open/close always address the gripper.
	On string

	// To names the destination target for move steps, or overrides the
	// gripper target for open/close (defaults "Open"/"Close").
	To string

	// Joints is an explicit joint configuration (degrees) for move_joint,
	// mutually exclusive with To.
	Joints []float64

	// Frame names the reference frame for set_frame and detach.
	Frame string

	// Value is the parameter value for set_* steps, or the pause duration
	// in seconds for pause.
	Value float64
}

// Describe renders the step for traces and operator feedback.
func (s Step) Describe() string {
	switch s.Kind {
	case StepSetSpeed, StepSetAcceleration, StepSetJointSpeed, StepSetJointAcceleration:
		return fmt.Sprintf("%s %s=%g", s.Kind, s.actor(), s.Value)
	case StepSetFrame:
		return fmt.Sprintf("set_frame %q", s.Frame)
	case StepMoveJoint, StepMoveLinear:
		if s.To != "" {
			return fmt.Sprintf("%s %s -> %q", s.Kind, s.actor(), s.To)
		}
		return fmt.Sprintf("%s %s -> joints%v", s.Kind, s.actor(), s.Joints)
	case StepOpen, StepClose:
		return string(s.Kind)
	case StepAttach:
		return "attach"
	case StepDetach:
		return fmt.Sprintf("detach -> %q", s.Frame)
	case StepPause:
		return fmt.Sprintf("pause %gs", s.Value)
	case StepReset:
		return "reset"
	}
	return string(s.Kind)
}

func (s Step) actor() string {
	if s.On == "" {
		return OnRobot
	}
	return s.On
}

// FrameRef is one frame entry in the station, with its lookup strictness.
// Frames default to optional (the original scripts logged and carried on);
// everything else in the station is required.
type FrameRef struct {
	Name   string
	Lookup string // "optional" (default) | "required"
}

// Station lists the named scene items a procedure needs.
type Station struct {
	Robot   string
	Gripper string
	Tool    string
	Frames  []FrameRef
	Targets []string
	Blocks  []string
}

// Procedure is a compiled, runnable procedure.
type Procedure struct {
	Name    string
	Station Station
	Steps   []Step
}
