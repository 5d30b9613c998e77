package sequence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasplab/pickseq/internal/fakesim"
	"github.com/grasplab/pickseq/internal/procfile"
	"github.com/grasplab/pickseq/internal/robolink"
	"github.com/grasplab/pickseq/internal/scene"
	"github.com/grasplab/pickseq/internal/testutil"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunner(sim *fakesim.Sim, opts ...Option) *Runner {
	base := []Option{
		WithLogger(quiet()),
		WithRunIDGenerator(testutil.NewFixedRunID("test-run")),
		WithSettle(0),
	}
	return New(sim, append(base, opts...)...)
}

// pickStation is the station the demo cell satisfies.
func pickStation() procfile.Station {
	return procfile.Station{
		Robot:   "UR3e",
		Gripper: "RobotiQ 2F-85",
		Tool:    "TCP",
		Frames: []procfile.FrameRef{
			{Name: "Frame Pick", Lookup: "optional"},
			{Name: "Frame Place", Lookup: "optional"},
		},
		Targets: []string{"Home", "Aprox1", "Block1", "Aprox2", "Drop1", "Open", "Close"},
		Blocks:  []string{"Part1"},
	}
}

func TestExecute_OrderedCommands(t *testing.T) {
	// The canonical approach sequence: gripper open, home, approach, reach
	// the block, gripper close, issued exactly in that order.
	sim := fakesim.NewDemoCell()
	proc := &procfile.Procedure{
		Name: "approach",
		Station: procfile.Station{
			Robot:   "UR3e",
			Gripper: "RobotiQ 2F-85",
			Targets: []string{"Home", "Aprox1", "Block1", "Open", "Close"},
		},
		Steps: []procfile.Step{
			{Kind: procfile.StepOpen},
			{Kind: procfile.StepMoveJoint, To: "Home"},
			{Kind: procfile.StepMoveJoint, To: "Aprox1"},
			{Kind: procfile.StepMoveJoint, To: "Block1"},
			{Kind: procfile.StepClose},
		},
	}

	out, err := newRunner(sim).Execute(context.Background(), proc)
	require.NoError(t, err)
	assert.Equal(t, "test-run", out.RunID)

	cmds := sim.Commands()
	require.Len(t, cmds, 5)
	assert.Equal(t, "RobotiQ 2F-85", cmds[0].Item)
	assert.Equal(t, "Open", cmds[0].Target)
	assert.Equal(t, "Home", cmds[1].Target)
	assert.Equal(t, "Aprox1", cmds[2].Target)
	assert.Equal(t, "Block1", cmds[3].Target)
	assert.Equal(t, "RobotiQ 2F-85", cmds[4].Item)
	assert.Equal(t, "Close", cmds[4].Target)
	for _, c := range cmds[1:4] {
		assert.Equal(t, "UR3e", c.Item)
	}

	// Trace mirrors declaration order with strictly increasing seq.
	kinds := make([]string, 0, len(out.Trace))
	for i, ev := range out.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []string{EventResolve, "open", "move_joint", "move_joint", "move_joint", "close"}, kinds)
}

func TestExecute_MissingRequiredTarget_AbortsBeforeMotion(t *testing.T) {
	sim := fakesim.NewDemoCell()
	proc := &procfile.Procedure{
		Name: "broken",
		Station: procfile.Station{
			Robot:   "UR3e",
			Targets: []string{"Home", "Ghost"},
		},
		Steps: []procfile.Step{
			{Kind: procfile.StepMoveJoint, To: "Home"},
		},
	}

	_, err := newRunner(sim).Execute(context.Background(), proc)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeMissingItem))

	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, -1, rerr.Step, "station resolution failures precede all steps")
	assert.Contains(t, rerr.Message, "Ghost")

	assert.Equal(t, 0, sim.MotionCount(), "no motion command may execute after a failed lookup")
}

func TestExecute_MissingRobot_Aborts(t *testing.T) {
	sim := fakesim.New() // empty scene
	proc := &procfile.Procedure{
		Name:    "empty",
		Station: procfile.Station{Robot: "UR3e"},
		Steps:   []procfile.Step{{Kind: procfile.StepMoveJoint, Joints: []float64{0, 0, 0, 0, 0, 0}}},
	}

	_, err := newRunner(sim).Execute(context.Background(), proc)
	assert.True(t, IsCode(err, ErrCodeMissingItem))
	assert.Equal(t, 0, sim.MotionCount())
}

func TestExecute_MissingOptionalFrame_Continues(t *testing.T) {
	sim := fakesim.NewDemoCell()
	proc := &procfile.Procedure{
		Name: "lenient",
		Station: procfile.Station{
			Robot:   "UR3e",
			Frames:  []procfile.FrameRef{{Name: "Frame Ghost", Lookup: "optional"}},
			Targets: []string{"Home"},
		},
		Steps: []procfile.Step{
			{Kind: procfile.StepMoveJoint, To: "Home"},
		},
	}

	out, err := newRunner(sim).Execute(context.Background(), proc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Frame Ghost"}, out.Missing)
	assert.Equal(t, 1, sim.MotionCount())
}

func TestExecute_MissingOptionalFrame_FailsAtPointOfUse(t *testing.T) {
	sim := fakesim.NewDemoCell()
	proc := &procfile.Procedure{
		Name: "use-missing-frame",
		Station: procfile.Station{
			Robot:   "UR3e",
			Frames:  []procfile.FrameRef{{Name: "Frame Ghost", Lookup: "optional"}},
			Targets: []string{"Home"},
		},
		Steps: []procfile.Step{
			{Kind: procfile.StepMoveJoint, To: "Home"},
			{Kind: procfile.StepSetFrame, Frame: "Frame Ghost"},
		},
	}

	_, err := newRunner(sim).Execute(context.Background(), proc)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeMissingItem))

	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 1, rerr.Step)
	// The move before the failing step did execute.
	assert.Equal(t, 1, sim.MotionCount())
}

func TestExecute_MotionFailurePropagates(t *testing.T) {
	sim := fakesim.NewDemoCell()
	sim.FailNextMotion(robolink.ErrMotionFailed)
	proc := &procfile.Procedure{
		Name: "faulty",
		Station: procfile.Station{
			Robot:   "UR3e",
			Targets: []string{"Home", "Aprox1"},
		},
		Steps: []procfile.Step{
			{Kind: procfile.StepMoveJoint, To: "Home"},
			{Kind: procfile.StepMoveJoint, To: "Aprox1"},
		},
	}

	out, err := newRunner(sim).Execute(context.Background(), proc)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeMotionFailed))

	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 0, rerr.Step)

	// No step event was recorded for the failed move, and the second move
	// never ran.
	for _, ev := range out.Trace {
		assert.NotEqual(t, "move_joint", ev.Kind)
	}
	assert.Equal(t, 0, sim.MotionCount())
}

func TestExecute_SetParams(t *testing.T) {
	sim := fakesim.NewDemoCell()
	proc := &procfile.Procedure{
		Name: "configure",
		Station: procfile.Station{
			Robot:   "UR3e",
			Gripper: "RobotiQ 2F-85",
			Targets: []string{"Home"},
		},
		Steps: []procfile.Step{
			{Kind: procfile.StepSetSpeed, Value: 100},
			{Kind: procfile.StepSetAcceleration, Value: 50},
			{Kind: procfile.StepSetJointSpeed, On: procfile.OnGripper, Value: 30},
			{Kind: procfile.StepMoveJoint, To: "Home"},
		},
	}

	_, err := newRunner(sim).Execute(context.Background(), proc)
	require.NoError(t, err)

	cmds := sim.Commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, robolink.OpSetParam, cmds[0].Op)
	assert.Equal(t, "speed", cmds[0].Param)
	assert.Equal(t, 100.0, cmds[0].Value)
	assert.Equal(t, "UR3e", cmds[0].Item)
	assert.Equal(t, "RobotiQ 2F-85", cmds[2].Item)
	assert.Equal(t, "joint_speed", cmds[2].Param)
}

func TestExecute_FullPickPlaceWithReset(t *testing.T) {
	sim := fakesim.NewDemoCell()
	ctx := context.Background()

	part, _ := sim.Lookup(ctx, "Part1", scene.TypeObject)
	origPose, err := sim.PoseOf(ctx, part)
	require.NoError(t, err)

	proc := &procfile.Procedure{
		Name:    "pick-place-reset",
		Station: pickStation(),
		Steps: []procfile.Step{
			{Kind: procfile.StepOpen},
			{Kind: procfile.StepMoveJoint, To: "Aprox1"},
			{Kind: procfile.StepMoveLinear, To: "Block1"},
			{Kind: procfile.StepClose},
			{Kind: procfile.StepAttach},
			{Kind: procfile.StepMoveJoint, To: "Aprox2"},
			{Kind: procfile.StepMoveLinear, To: "Drop1"},
			{Kind: procfile.StepDetach, Frame: "Frame Place"},
			{Kind: procfile.StepReset},
		},
	}

	out, err := newRunner(sim).Execute(ctx, proc)
	require.NoError(t, err)

	// The snapshot captured the original placement.
	state, ok := out.Snapshot[scene.Canonical("Part1")]
	require.True(t, ok)
	assert.Equal(t, "Frame Pick", state.Parent)
	assert.True(t, origPose.Eq(state.Pose))

	// Reset restored the block exactly.
	gotPose, err := sim.PoseOf(ctx, part)
	require.NoError(t, err)
	assert.True(t, origPose.Eq(gotPose), "reset must restore the captured pose byte-for-byte")

	parent, err := sim.ParentOf(ctx, part)
	require.NoError(t, err)
	assert.Equal(t, "Frame Pick", parent.Name)

	// Attach found the part under the Block1 target.
	var attached string
	for _, c := range sim.Commands() {
		if c.Op == robolink.OpAttach {
			attached = c.Target
		}
	}
	assert.Equal(t, "Part1", attached)
}

func TestExecute_SinkFailureAborts(t *testing.T) {
	sim := fakesim.NewDemoCell()
	failing := SinkFunc(func(context.Context, TraceEvent) error {
		return assert.AnError
	})
	proc := &procfile.Procedure{
		Name:    "journaled",
		Station: procfile.Station{Robot: "UR3e", Targets: []string{"Home"}},
		Steps:   []procfile.Step{{Kind: procfile.StepMoveJoint, To: "Home"}},
	}

	_, err := newRunner(sim, WithSink(failing)).Execute(context.Background(), proc)
	assert.True(t, IsCode(err, ErrCodeJournal))
}

func TestExecute_PauseSleeps(t *testing.T) {
	sim := fakesim.NewDemoCell()
	proc := &procfile.Procedure{
		Name:    "pause",
		Station: procfile.Station{Robot: "UR3e", Targets: []string{"Home"}},
		Steps: []procfile.Step{
			{Kind: procfile.StepPause, Value: 0.001},
			{Kind: procfile.StepMoveJoint, To: "Home"},
		},
	}

	out, err := newRunner(sim).Execute(context.Background(), proc)
	require.NoError(t, err)
	assert.Equal(t, "pause", out.Trace[1].Kind)
	assert.Equal(t, 1, sim.MotionCount())
}

func TestExecute_SnapshotPersistedBeforeMotion(t *testing.T) {
	sim := fakesim.NewDemoCell()
	motionsAtPersist := -1
	var persisted Snapshot
	r := newRunner(sim, WithSnapshotFunc(func(_ context.Context, snap Snapshot) error {
		motionsAtPersist = sim.MotionCount()
		persisted = snap
		return nil
	}))
	proc := &procfile.Procedure{
		Name:    "persist",
		Station: pickStation(),
		Steps: []procfile.Step{
			{Kind: procfile.StepMoveJoint, To: "Home"},
		},
	}

	_, err := r.Execute(context.Background(), proc)
	require.NoError(t, err)
	assert.Equal(t, 0, motionsAtPersist, "captures must be persisted before the first motion")
	assert.Contains(t, persisted, scene.Canonical("Part1"))
}

func TestExecute_SnapshotFuncErrorAborts(t *testing.T) {
	sim := fakesim.NewDemoCell()
	r := newRunner(sim, WithSnapshotFunc(func(context.Context, Snapshot) error {
		return errors.New("disk full")
	}))
	proc := &procfile.Procedure{
		Name:    "persist-fails",
		Station: pickStation(),
		Steps: []procfile.Step{
			{Kind: procfile.StepMoveJoint, To: "Home"},
		},
	}

	_, err := r.Execute(context.Background(), proc)
	assert.True(t, IsCode(err, ErrCodeJournal))
	assert.Equal(t, 0, sim.MotionCount())
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	resumed := NewClockAt(10)
	assert.Equal(t, int64(11), resumed.Next())
}
