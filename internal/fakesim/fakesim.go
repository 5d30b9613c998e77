// Package fakesim is an in-memory implementation of robolink.Session.
//
// It backs the conformance harness, the package tests, and --fake CLI runs.
// The fake keeps a small scene graph (items, poses, parents), records every
// command it receives in order, and fails with the same RemoteError codes
// the wire protocol uses, so callers cannot tell the two sessions apart.
package fakesim

import (
	"context"
	"fmt"
	"sync"

	"github.com/grasplab/pickseq/internal/robolink"
	"github.com/grasplab/pickseq/internal/scene"
	"github.com/grasplab/pickseq/internal/spatial"
)

// DefaultAttachRadius is how close (mm) an object must be to the tool's TCP
// for AttachClosest to pick it up.
const DefaultAttachRadius = 200.0

// Command is one recorded session call.
type Command struct {
	Op     string  // robolink op constant
	Item   string  // item name the call addressed
	Target string  // move destination / attach result / re-parent frame
	Param  string  // set_param only
	Value  float64 // set_param only
}

// IsMotion reports whether the command moved something in the scene.
func (c Command) IsMotion() bool {
	switch c.Op {
	case robolink.OpMoveJ, robolink.OpMoveL, robolink.OpAttach, robolink.OpDetach:
		return true
	}
	return false
}

type entry struct {
	item   scene.Item
	pose   spatial.Pose
	parent string // canonical name, "" for scene root
	held   bool   // attached to a tool
	heldBy string
}

// Sim is the fake simulator.
//
// Unlike the live client it is safe for concurrent use, purely so tests can
// inspect the command log without ceremony.
type Sim struct {
	mu       sync.Mutex
	nextID   uint64
	byName   map[string]*entry // canonical name -> entry
	byID     map[uint64]*entry
	commands []Command
	radius   float64

	// failNext, when non-empty, makes the next motion command fail with
	// this code.
	failNext string
	closed   bool
}

// New returns an empty fake scene.
func New() *Sim {
	return &Sim{
		byName: make(map[string]*entry),
		byID:   make(map[uint64]*entry),
		radius: DefaultAttachRadius,
	}
}

// AddItem adds a named item at the identity pose and returns its handle.
func (s *Sim) AddItem(name string, t scene.ItemType) scene.Item {
	return s.AddItemAt(name, t, spatial.Identity())
}

// AddItemAt adds a named item at the given absolute pose.
func (s *Sim) AddItemAt(name string, t scene.ItemType, pose spatial.Pose) scene.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	it := scene.Item{ID: s.nextID, Name: name, Type: t}
	e := &entry{item: it, pose: pose}
	s.byName[scene.Canonical(name)] = e
	s.byID[it.ID] = e
	return it
}

// AddBlock adds an object parented to frame at the given absolute pose.
func (s *Sim) AddBlock(name, frame string, pose spatial.Pose) scene.Item {
	it := s.AddItemAt(name, scene.TypeObject, pose)
	s.mu.Lock()
	s.byID[it.ID].parent = scene.Canonical(frame)
	s.mu.Unlock()
	return it
}

// Mount parents child to parent in the scene tree, so the child follows the
// parent's motion. Used to put a tool on a robot flange.
func (s *Sim) Mount(child, parent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byName[scene.Canonical(child)]; ok {
		e.parent = scene.Canonical(parent)
	}
}

// Remove deletes a named item, e.g. to stage a missing-item scenario after
// initial setup.
func (s *Sim) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scene.Canonical(name)
	if e, ok := s.byName[key]; ok {
		delete(s.byID, e.item.ID)
		delete(s.byName, key)
	}
}

// SetAttachRadius overrides the attach pickup radius.
func (s *Sim) SetAttachRadius(mm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.radius = mm
}

// FailNextMotion makes the next motion command fail with the given wire
// error code.
func (s *Sim) FailNextMotion(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = code
}

// Commands returns a copy of the recorded command log in call order.
func (s *Sim) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// MotionCount returns how many motion commands have executed.
func (s *Sim) MotionCount() int {
	n := 0
	for _, c := range s.Commands() {
		if c.IsMotion() {
			n++
		}
	}
	return n
}

func (s *Sim) record(c Command) {
	s.commands = append(s.commands, c)
}

func (s *Sim) get(item scene.Item) (*entry, error) {
	e, ok := s.byID[item.ID]
	if !ok {
		return nil, &robolink.RemoteError{Code: robolink.ErrUnknownItem, Message: fmt.Sprintf("no item with id %d", item.ID)}
	}
	return e, nil
}

func (s *Sim) checkFail() error {
	if s.failNext != "" {
		code := s.failNext
		s.failNext = ""
		return &robolink.RemoteError{Code: code, Message: "injected failure"}
	}
	return nil
}

// Lookup resolves a name with optional type filter. Absent names return an
// invalid Item and nil error, matching the live client.
func (s *Sim) Lookup(_ context.Context, name string, t scene.ItemType) (scene.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byName[scene.Canonical(name)]
	if !ok || (t != scene.TypeAny && e.item.Type != t) {
		return scene.Item{Name: name, Type: t}, nil
	}
	return e.item, nil
}

// SetParam records the parameter change.
func (s *Sim) SetParam(_ context.Context, item scene.Item, p robolink.Param, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(item)
	if err != nil {
		return err
	}
	s.record(Command{Op: robolink.OpSetParam, Item: e.item.Name, Param: string(p), Value: value})
	return nil
}

// SetFrame records the active-frame change.
func (s *Sim) SetFrame(_ context.Context, item, frame scene.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(item)
	if err != nil {
		return err
	}
	f, err := s.get(frame)
	if err != nil {
		return err
	}
	s.record(Command{Op: robolink.OpSetFrame, Item: e.item.Name, Target: f.item.Name})
	return nil
}

// MoveJ moves the item. A named destination must exist as a target; on
// arrival the moving item takes the target's pose, which is what makes a
// subsequent AttachClosest land on the right block.
func (s *Sim) MoveJ(ctx context.Context, item scene.Item, m robolink.Motion) error {
	return s.move(ctx, robolink.OpMoveJ, item, m)
}

// MoveL moves the item linearly. Same bookkeeping as MoveJ.
func (s *Sim) MoveL(ctx context.Context, item scene.Item, m robolink.Motion) error {
	return s.move(ctx, robolink.OpMoveL, item, m)
}

func (s *Sim) move(_ context.Context, op string, item scene.Item, m robolink.Motion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(item)
	if err != nil {
		return err
	}
	if err := s.checkFail(); err != nil {
		return err
	}

	dest := m.Target
	if dest != "" {
		te, ok := s.byName[scene.Canonical(dest)]
		if !ok {
			return &robolink.RemoteError{Code: robolink.ErrUnknownItem, Message: fmt.Sprintf("no target %q", dest)}
		}
		e.pose = te.pose
		s.propagate(scene.Canonical(e.item.Name), te.pose)
	} else {
		dest = fmt.Sprintf("joints%v", m.Joints)
	}
	s.record(Command{Op: op, Item: e.item.Name, Target: dest})
	return nil
}

// propagate drags children (mounted tools, held blocks) along with a moved
// item. The fake does not keep relative offsets; children land on the
// parent's pose, which is close enough for attach-radius checks.
func (s *Sim) propagate(parentKey string, pose spatial.Pose) {
	for key, e := range s.byName {
		if e.parent == parentKey && key != parentKey {
			e.pose = pose
			s.propagate(key, pose)
		}
	}
}

// AttachClosest grabs the nearest free object within the attach radius.
func (s *Sim) AttachClosest(_ context.Context, tool scene.Item) (scene.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	te, err := s.get(tool)
	if err != nil {
		return scene.Item{}, err
	}
	if err := s.checkFail(); err != nil {
		return scene.Item{}, err
	}

	var best *entry
	bestDist := s.radius
	for _, e := range s.byName {
		if e.item.Type != scene.TypeObject || e.held {
			continue
		}
		if d := te.pose.Distance(e.pose); d <= bestDist {
			best, bestDist = e, d
		}
	}
	if best == nil {
		s.record(Command{Op: robolink.OpAttach, Item: te.item.Name})
		return scene.Item{}, nil
	}
	best.held = true
	best.heldBy = scene.Canonical(te.item.Name)
	best.parent = scene.Canonical(te.item.Name)
	s.record(Command{Op: robolink.OpAttach, Item: te.item.Name, Target: best.item.Name})
	return best.item, nil
}

// DetachAll releases everything the tool holds onto frame.
func (s *Sim) DetachAll(_ context.Context, tool, frame scene.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	te, err := s.get(tool)
	if err != nil {
		return err
	}
	fe, err := s.get(frame)
	if err != nil {
		return err
	}
	if err := s.checkFail(); err != nil {
		return err
	}

	toolKey := scene.Canonical(te.item.Name)
	for _, e := range s.byName {
		if e.held && e.heldBy == toolKey {
			e.held = false
			e.heldBy = ""
			e.parent = scene.Canonical(fe.item.Name)
			// A released object rests where the tool left it.
			e.pose = te.pose
		}
	}
	s.record(Command{Op: robolink.OpDetach, Item: te.item.Name, Target: fe.item.Name})
	return nil
}

// PoseOf returns the item's absolute pose.
func (s *Sim) PoseOf(_ context.Context, item scene.Item) (spatial.Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(item)
	if err != nil {
		return spatial.Pose{}, err
	}
	return e.pose, nil
}

// SetPose sets the item's absolute pose.
func (s *Sim) SetPose(_ context.Context, item scene.Item, p spatial.Pose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(item)
	if err != nil {
		return err
	}
	e.pose = p
	s.record(Command{Op: robolink.OpSetPose, Item: e.item.Name})
	return nil
}

// ParentOf returns the item's parent, or an invalid Item at the scene root.
func (s *Sim) ParentOf(_ context.Context, item scene.Item) (scene.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(item)
	if err != nil {
		return scene.Item{}, err
	}
	if e.parent == "" {
		return scene.Item{}, nil
	}
	pe, ok := s.byName[e.parent]
	if !ok {
		return scene.Item{}, nil
	}
	return pe.item, nil
}

// SetParent re-parents the item, keeping its absolute pose.
func (s *Sim) SetParent(_ context.Context, item, parent scene.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(item)
	if err != nil {
		return err
	}
	pe, err := s.get(parent)
	if err != nil {
		return err
	}
	e.parent = scene.Canonical(pe.item.Name)
	e.held = false
	e.heldBy = ""
	s.record(Command{Op: robolink.OpSetParent, Item: e.item.Name, Target: pe.item.Name})
	return nil
}

// Close marks the session closed. Further calls still work; the fake does
// not enforce connection state.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ robolink.Session = (*Sim)(nil)
