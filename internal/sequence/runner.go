// Package sequence executes compiled procedures against a simulator
// session: resolve the station, capture block poses, then run the declared
// steps strictly in order.
//
// Execution is single-threaded and synchronous. Every session call blocks
// until the simulator reports completion, no step is retried, and the first
// failure terminates the run; the scene is left in whatever state the last
// successful step produced.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/grasplab/pickseq/internal/procfile"
	"github.com/grasplab/pickseq/internal/robolink"
	"github.com/grasplab/pickseq/internal/scene"
)

// DefaultSettle is the pause before reset restores block poses, giving
// simulated motion time to settle.
const DefaultSettle = 2 * time.Second

// Runner executes procedures against one session.
type Runner struct {
	session robolink.Session
	clock   *Clock
	wall    clock.Clock
	logger  *slog.Logger
	sink    EventSink
	idGen   RunIDGenerator
	settle  time.Duration

	snapshotFn func(context.Context, Snapshot) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithSink sets the trace event sink.
func WithSink(s EventSink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithWallClock injects the wall clock used for pause and settle waits.
// Tests pass a clock.Mock so nothing actually sleeps.
func WithWallClock(c clock.Clock) Option {
	return func(r *Runner) { r.wall = c }
}

// WithRunIDGenerator overrides run ID generation for deterministic tests.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(r *Runner) { r.idGen = g }
}

// WithLogicalClock resumes the trace clock from a known position.
func WithLogicalClock(c *Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithSettle overrides the settle pause before reset.
func WithSettle(d time.Duration) Option {
	return func(r *Runner) { r.settle = d }
}

// WithSnapshotFunc registers a callback invoked with the captured block
// placements right after capture, before the first step executes. The
// journal persists the snapshot here so an interrupted run can still be
// reset. A callback error aborts the run.
func WithSnapshotFunc(fn func(context.Context, Snapshot) error) Option {
	return func(r *Runner) { r.snapshotFn = fn }
}

// New creates a Runner bound to a session.
func New(session robolink.Session, opts ...Option) *Runner {
	r := &Runner{
		session: session,
		clock:   NewClock(),
		wall:    clock.New(),
		logger:  slog.Default(),
		idGen:   UUIDv7Generator{},
		settle:  DefaultSettle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Outcome is the result of a completed run.
type Outcome struct {
	RunID     string
	Procedure string
	Registry  *scene.Registry
	Missing   []string // optional names that did not resolve
	Snapshot  Snapshot
	Trace     []TraceEvent
}

// Execute runs the procedure. On failure it returns a *RunError along with
// the partial outcome (trace up to the failing step), which the CLI uses to
// report how far the run got.
//
// Order of operations: resolve station (abort on missing required item,
// before any motion), capture block poses, execute steps in declared order.
func (r *Runner) Execute(ctx context.Context, proc *procfile.Procedure) (*Outcome, error) {
	out := &Outcome{
		RunID:     r.idGen.Generate(),
		Procedure: proc.Name,
	}
	r.logger.Info("run starting", "procedure", proc.Name, "run_id", out.RunID)

	res, err := scene.Resolve(ctx, r.session, StationSpecs(proc.Station), r.logger)
	if err != nil {
		var rerr *scene.ResolveError
		if errors.As(err, &rerr) {
			return out, &RunError{Code: ErrCodeMissingItem, Step: -1, Message: rerr.Error(), Err: err}
		}
		return out, &RunError{Code: ErrCodeLinkFailed, Step: -1, Message: "station resolution failed", Err: err}
	}
	out.Registry = res.Registry
	out.Missing = res.Missing
	if err := r.emit(ctx, out, TraceEvent{
		Kind:   EventResolve,
		Detail: fmt.Sprintf("%d items resolved, %d missing", res.Registry.Len(), len(res.Missing)),
	}); err != nil {
		return out, err
	}

	snap, err := CaptureBlocks(ctx, r.session, out.Registry, proc.Station.Blocks)
	if err != nil {
		return out, &RunError{Code: ErrCodeLinkFailed, Step: -1, Message: "block capture failed", Err: err}
	}
	out.Snapshot = snap
	if r.snapshotFn != nil && len(snap) > 0 {
		if err := r.snapshotFn(ctx, snap); err != nil {
			return out, &RunError{Code: ErrCodeJournal, Step: -1, Message: "snapshot persist failed", Err: err}
		}
	}
	for _, name := range proc.Station.Blocks {
		state := snap[scene.Canonical(name)]
		if err := r.emit(ctx, out, TraceEvent{
			Kind:   EventCapture,
			Item:   name,
			Detail: fmt.Sprintf("parent=%q", state.Parent),
		}); err != nil {
			return out, err
		}
	}

	for i, step := range proc.Steps {
		if err := ctx.Err(); err != nil {
			return out, &RunError{Code: ErrCodeLinkFailed, Step: i, Message: "run cancelled", Err: err}
		}
		r.logger.Info("step", "index", i, "step", step.Describe())
		if err := r.execStep(ctx, out, proc, i, step); err != nil {
			return out, err
		}
		if err := r.emit(ctx, out, TraceEvent{
			Kind:   string(step.Kind),
			Item:   r.actorName(proc, step),
			Detail: step.Describe(),
		}); err != nil {
			return out, err
		}
	}

	r.logger.Info("run complete", "procedure", proc.Name, "run_id", out.RunID, "events", len(out.Trace))
	return out, nil
}

// emit stamps, records and fans out one trace event.
func (r *Runner) emit(ctx context.Context, out *Outcome, ev TraceEvent) error {
	ev.Seq = r.clock.Next()
	out.Trace = append(out.Trace, ev)
	if r.sink == nil {
		return nil
	}
	if err := r.sink.Event(ctx, ev); err != nil {
		return &RunError{Code: ErrCodeJournal, Step: -1, Message: "trace sink failed", Err: err}
	}
	return nil
}

func (r *Runner) execStep(ctx context.Context, out *Outcome, proc *procfile.Procedure, i int, step procfile.Step) error {
	fail := func(code ErrorCode, msg string, err error) error {
		return &RunError{Code: code, Step: i, Message: msg, Err: err}
	}
	item := func(name string) (scene.Item, error) {
		it, ok := out.Registry.Get(name)
		if !ok {
			return scene.Item{}, fail(ErrCodeMissingItem, fmt.Sprintf("item %q not in registry", name), nil)
		}
		return it, nil
	}

	switch step.Kind {
	case procfile.StepSetSpeed, procfile.StepSetAcceleration,
		procfile.StepSetJointSpeed, procfile.StepSetJointAcceleration:
		actor, err := item(r.actorName(proc, step))
		if err != nil {
			return err
		}
		if err := r.session.SetParam(ctx, actor, paramFor(step.Kind), step.Value); err != nil {
			return r.sessionError(i, step, err)
		}

	case procfile.StepSetFrame:
		actor, err := item(r.actorName(proc, step))
		if err != nil {
			return err
		}
		frame, err := item(step.Frame)
		if err != nil {
			return err
		}
		if err := r.session.SetFrame(ctx, actor, frame); err != nil {
			return r.sessionError(i, step, err)
		}

	case procfile.StepMoveJoint, procfile.StepMoveLinear:
		actor, err := item(r.actorName(proc, step))
		if err != nil {
			return err
		}
		var m robolink.Motion
		if step.To != "" {
			if _, err := item(step.To); err != nil {
				return err
			}
			m = robolink.Named(step.To)
		} else {
			m = robolink.Motion{Joints: step.Joints}
		}
		move := r.session.MoveJ
		if step.Kind == procfile.StepMoveLinear {
			move = r.session.MoveL
		}
		if err := move(ctx, actor, m); err != nil {
			return r.sessionError(i, step, err)
		}

	case procfile.StepOpen, procfile.StepClose:
		gripper, err := item(proc.Station.Gripper)
		if err != nil {
			return err
		}
		target := step.To
		if target == "" {
			if step.Kind == procfile.StepOpen {
				target = "Open"
			} else {
				target = "Close"
			}
		}
		if _, err := item(target); err != nil {
			return err
		}
		if err := r.session.MoveJ(ctx, gripper, robolink.Named(target)); err != nil {
			return r.sessionError(i, step, err)
		}

	case procfile.StepAttach:
		tool, err := item(proc.Station.Tool)
		if err != nil {
			return err
		}
		got, err := r.session.AttachClosest(ctx, tool)
		if err != nil {
			return r.sessionError(i, step, err)
		}
		if got.Valid() {
			r.logger.Info("attached", "object", got.Name)
		} else {
			r.logger.Warn("nothing within attach range")
		}

	case procfile.StepDetach:
		tool, err := item(proc.Station.Tool)
		if err != nil {
			return err
		}
		frame, err := item(step.Frame)
		if err != nil {
			return err
		}
		if err := r.session.DetachAll(ctx, tool, frame); err != nil {
			return r.sessionError(i, step, err)
		}

	case procfile.StepPause:
		r.wall.Sleep(time.Duration(step.Value * float64(time.Second)))

	case procfile.StepReset:
		if err := ResetBlocks(ctx, r.session, out.Registry, out.Snapshot, r.settle, r.wall); err != nil {
			return r.sessionError(i, step, err)
		}

	default:
		return fail(ErrCodeBadStep, fmt.Sprintf("unknown step kind %q", step.Kind), nil)
	}
	return nil
}

// sessionError maps a session failure to a RunError code.
func (r *Runner) sessionError(i int, step procfile.Step, err error) error {
	code := ErrCodeLinkFailed
	var rerr *robolink.RemoteError
	if errors.As(err, &rerr) {
		switch {
		case rerr.Code == robolink.ErrUnknownItem:
			code = ErrCodeMissingItem
		case rerr.IsMotionError():
			code = ErrCodeMotionFailed
		default:
			code = ErrCodeMotionFailed
		}
	}
	return &RunError{Code: code, Step: i, Message: step.Describe() + " failed", Err: err}
}

func (r *Runner) actorName(proc *procfile.Procedure, step procfile.Step) string {
	switch step.Kind {
	case procfile.StepOpen, procfile.StepClose:
		return proc.Station.Gripper
	case procfile.StepAttach, procfile.StepDetach:
		return proc.Station.Tool
	case procfile.StepPause, procfile.StepReset:
		return ""
	}
	if step.On == procfile.OnGripper {
		return proc.Station.Gripper
	}
	return proc.Station.Robot
}

func paramFor(k procfile.StepKind) robolink.Param {
	switch k {
	case procfile.StepSetSpeed:
		return robolink.ParamSpeed
	case procfile.StepSetAcceleration:
		return robolink.ParamAcceleration
	case procfile.StepSetJointSpeed:
		return robolink.ParamJointSpeed
	case procfile.StepSetJointAcceleration:
		return robolink.ParamJointAcceleration
	}
	return robolink.Param(string(k))
}

// StationSpecs expands a station into resolver specs, in a fixed order:
// robot, gripper, tool, frames, targets, blocks. Required entries appear
// before the frame list so a missing robot aborts without touching the
// scene at all.
func StationSpecs(st procfile.Station) []scene.Spec {
	var specs []scene.Spec
	specs = append(specs, scene.Spec{Name: st.Robot, Type: scene.TypeRobot, Lookup: scene.LookupRequired})
	if st.Gripper != "" {
		specs = append(specs, scene.Spec{Name: st.Gripper, Type: scene.TypeRobot, Lookup: scene.LookupRequired})
	}
	if st.Tool != "" {
		specs = append(specs, scene.Spec{Name: st.Tool, Type: scene.TypeTool, Lookup: scene.LookupRequired})
	}
	for _, f := range st.Frames {
		kind := scene.LookupOptional
		if f.Lookup == "required" {
			kind = scene.LookupRequired
		}
		specs = append(specs, scene.Spec{Name: f.Name, Type: scene.TypeFrame, Lookup: kind})
	}
	for _, t := range st.Targets {
		specs = append(specs, scene.Spec{Name: t, Type: scene.TypeTarget, Lookup: scene.LookupRequired})
	}
	for _, b := range st.Blocks {
		specs = append(specs, scene.Spec{Name: b, Type: scene.TypeObject, Lookup: scene.LookupRequired})
	}
	return specs
}
