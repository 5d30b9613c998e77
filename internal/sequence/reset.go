package sequence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/grasplab/pickseq/internal/robolink"
	"github.com/grasplab/pickseq/internal/scene"
	"github.com/grasplab/pickseq/internal/spatial"
)

// BlockState is a block's captured placement: its parent frame and its
// absolute pose at capture time.
type BlockState struct {
	Parent string       `json:"parent"`
	Pose   spatial.Pose `json:"pose"`
}

// Snapshot maps block name to the state captured before any motion. The
// reset path restores exactly these values.
type Snapshot map[string]BlockState

// CaptureBlocks records the current parent and absolute pose of every named
// block. Called before the first step executes.
func CaptureBlocks(ctx context.Context, s robolink.Session, reg *scene.Registry, blocks []string) (Snapshot, error) {
	snap := make(Snapshot, len(blocks))
	for _, name := range blocks {
		it, ok := reg.Get(name)
		if !ok {
			return nil, fmt.Errorf("capture: block %q not in registry", name)
		}
		pose, err := s.PoseOf(ctx, it)
		if err != nil {
			return nil, fmt.Errorf("capture pose of %q: %w", name, err)
		}
		parent, err := s.ParentOf(ctx, it)
		if err != nil {
			return nil, fmt.Errorf("capture parent of %q: %w", name, err)
		}
		snap[scene.Canonical(name)] = BlockState{Parent: parent.Name, Pose: pose}
	}
	return snap, nil
}

// ResetBlocks restores every captured block: wait for simulated motion to
// settle, then re-parent each block and reassign its captured absolute
// pose. Blocks are processed in sorted name order for determinism.
//
// The parent frame must still resolve in the registry; a frame that was
// optional and absent fails here, at point of use.
func ResetBlocks(ctx context.Context, s robolink.Session, reg *scene.Registry, snap Snapshot, settle time.Duration, wall clock.Clock) error {
	if wall == nil {
		wall = clock.New()
	}
	if settle > 0 {
		wall.Sleep(settle)
	}

	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("reset %q: %w", name, err)
		}
		state := snap[name]

		block, ok := reg.Get(name)
		if !ok {
			return fmt.Errorf("reset: block %q not in registry", name)
		}
		parent, ok := reg.Get(state.Parent)
		if !ok {
			return fmt.Errorf("reset: parent frame %q of block %q not in registry", state.Parent, name)
		}
		if err := s.SetParent(ctx, block, parent); err != nil {
			return fmt.Errorf("reset parent of %q: %w", name, err)
		}
		if err := s.SetPose(ctx, block, state.Pose); err != nil {
			return fmt.Errorf("reset pose of %q: %w", name, err)
		}
	}
	return nil
}
