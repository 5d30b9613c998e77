// Package robolink speaks the cell simulator's remote-control protocol:
// JSON request/response frames over a single websocket connection.
//
// The package defines the Session interface consumed by the sequencer and
// implements it with a live Client. An in-process implementation for tests
// and offline runs lives in internal/fakesim.
package robolink

import (
	"context"

	"github.com/grasplab/pickseq/internal/scene"
	"github.com/grasplab/pickseq/internal/spatial"
)

// Param names a sticky motion parameter on a robot or gripper item. Each
// parameter keeps its value until overwritten by another SetParam call.
type Param string

const (
	// ParamSpeed is linear TCP speed in mm/s.
	ParamSpeed Param = "speed"
	// ParamAcceleration is linear TCP acceleration in mm/s^2.
	ParamAcceleration Param = "acceleration"
	// ParamJointSpeed is joint speed in deg/s.
	ParamJointSpeed Param = "joint_speed"
	// ParamJointAcceleration is joint acceleration in deg/s^2.
	ParamJointAcceleration Param = "joint_acceleration"
)

// Motion is the destination of a move command: either a named recorded
// target or an explicit joint configuration in degrees. Exactly one of the
// two fields is set.
type Motion struct {
	Target string
	Joints []float64
}

// Named returns a Motion that moves to a recorded target.
func Named(target string) Motion {
	return Motion{Target: target}
}

// Joints returns a Motion that moves to an explicit joint configuration.
func Joints(deg ...float64) Motion {
	return Motion{Joints: deg}
}

// Session is the full command surface the sequencer needs from a simulator.
//
// All calls are synchronous: a move call returns only after the simulator
// reports the motion (and settling) complete. Implementations are not
// required to be safe for concurrent use; the sequencer is single-threaded
// and holds one session for the whole run.
type Session interface {
	scene.Lookuper

	// SetParam sets a sticky motion parameter on a robot or gripper.
	SetParam(ctx context.Context, item scene.Item, p Param, value float64) error

	// SetFrame sets the active reference frame for subsequent moves.
	SetFrame(ctx context.Context, item, frame scene.Item) error

	// MoveJ performs a joint-space move and blocks until it completes.
	MoveJ(ctx context.Context, item scene.Item, m Motion) error

	// MoveL performs a Cartesian linear move and blocks until it completes.
	MoveL(ctx context.Context, item scene.Item, m Motion) error

	// AttachClosest attaches the candidate object nearest the tool's TCP
	// and returns it. An invalid Item means nothing was in range.
	AttachClosest(ctx context.Context, tool scene.Item) (scene.Item, error)

	// DetachAll releases every object held by the tool, re-parenting them
	// to frame.
	DetachAll(ctx context.Context, tool, frame scene.Item) error

	// PoseOf returns the item's absolute pose.
	PoseOf(ctx context.Context, item scene.Item) (spatial.Pose, error)

	// SetPose sets the item's absolute pose.
	SetPose(ctx context.Context, item scene.Item, p spatial.Pose) error

	// ParentOf returns the item's parent in the scene tree.
	ParentOf(ctx context.Context, item scene.Item) (scene.Item, error)

	// SetParent re-parents the item, preserving its absolute pose.
	SetParent(ctx context.Context, item, parent scene.Item) error

	// Close releases the connection. The session is unusable afterwards.
	Close() error
}
