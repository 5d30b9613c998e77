package fakesim

import (
	"github.com/grasplab/pickseq/internal/scene"
	"github.com/grasplab/pickseq/internal/spatial"
)

// NewDemoCell builds the scene the bundled procedures/ files expect: a UR3e
// with a two-finger gripper, pick and place frames, recorded targets, and
// one block sitting on the pick frame. Used by --fake CLI runs and as a
// convenient fixture in tests.
func NewDemoCell() *Sim {
	s := New()

	s.AddItem("UR3e", scene.TypeRobot)
	s.AddItem("RobotiQ 2F-85", scene.TypeRobot) // gripper mechanism, shares MoveJ
	s.AddItem("TCP", scene.TypeTool)
	s.Mount("TCP", "UR3e")

	s.AddItemAt("Frame Pick", scene.TypeFrame, spatial.FromXYZRPW(300, 200, 0, 0, 0, 0))
	s.AddItemAt("Frame Place", scene.TypeFrame, spatial.FromXYZRPW(300, -200, 0, 0, 0, 0))

	// Robot targets.
	s.AddItemAt("Home", scene.TypeTarget, spatial.FromXYZRPW(0, 0, 500, 0, 0, 0))
	s.AddItemAt("Aprox1", scene.TypeTarget, spatial.FromXYZRPW(300, 200, 200, 0, 180, 0))
	s.AddItemAt("Block1", scene.TypeTarget, spatial.FromXYZRPW(300, 200, 50, 0, 180, 0))
	s.AddItemAt("Aprox2", scene.TypeTarget, spatial.FromXYZRPW(300, -200, 200, 0, 180, 0))
	s.AddItemAt("Drop1", scene.TypeTarget, spatial.FromXYZRPW(300, -200, 50, 0, 180, 0))

	// Gripper targets.
	s.AddItem("Open", scene.TypeTarget)
	s.AddItem("Close", scene.TypeTarget)

	// The part lives right under the Block1 target.
	s.AddBlock("Part1", "Frame Pick", spatial.FromXYZRPW(300, 200, 25, 0, 0, 0))

	return s
}
