package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/grasplab/pickseq/internal/fakesim"
	"github.com/grasplab/pickseq/internal/scene"
	"github.com/grasplab/pickseq/internal/sequence"
)

// AssertionError carries expected/actual context plus the trace, so a
// failing scenario prints enough to debug without rerunning.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []sequence.TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&b, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&b, "  actual:   %s\n", e.Actual)
	if len(e.Trace) > 0 {
		b.WriteString("trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&b, "  [%d] %s %s %s\n", ev.Seq, ev.Kind, ev.Item, ev.Detail)
		}
	}
	return b.String()
}

func evalAssertion(ctx context.Context, a Assertion, r *Result, sim *fakesim.Sim, out *sequence.Outcome) error {
	switch a.Type {
	case AssertTraceOrder:
		return assertTraceOrder(r.Trace, a.Kinds)
	case AssertTraceContains:
		return assertTraceContains(r.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(r.Trace, a)
	case AssertMotionCount:
		if r.MotionCount != a.Count {
			return &AssertionError{
				Type:     AssertMotionCount,
				Expected: fmt.Sprintf("%d motion commands", a.Count),
				Actual:   fmt.Sprintf("%d motion commands", r.MotionCount),
			}
		}
		return nil
	case AssertMissing:
		return assertMissing(r.Missing, a.Names)
	case AssertPoseRestored:
		return assertPoseRestored(ctx, sim, out, a.Names)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceOrder checks the kinds appear as a subsequence of the trace.
func assertTraceOrder(trace []sequence.TraceEvent, kinds []string) error {
	next := 0
	for _, ev := range trace {
		if next < len(kinds) && ev.Kind == kinds[next] {
			next++
		}
	}
	if next != len(kinds) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("kinds in order: %v", kinds),
			Actual:   fmt.Sprintf("matched %d of %d, first unmatched %q", next, len(kinds), kinds[next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceContains checks some event matches every non-empty field.
func assertTraceContains(trace []sequence.TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if a.Kind != "" && ev.Kind != a.Kind {
			continue
		}
		if a.Item != "" && ev.Item != a.Item {
			continue
		}
		if a.Detail != "" && ev.Detail != a.Detail {
			continue
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event kind=%q item=%q detail=%q", a.Kind, a.Item, a.Detail),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func assertTraceCount(trace []sequence.TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Kind == a.Kind {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d events of kind %q", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertMissing checks the run recorded exactly the given absent names.
func assertMissing(got, want []string) error {
	if len(got) != len(want) {
		return &AssertionError{
			Type:     AssertMissing,
			Expected: fmt.Sprintf("absent names %v", want),
			Actual:   fmt.Sprintf("absent names %v", got),
		}
	}
	seen := make(map[string]bool, len(got))
	for _, name := range got {
		seen[name] = true
	}
	for _, name := range want {
		if !seen[name] {
			return &AssertionError{
				Type:     AssertMissing,
				Expected: fmt.Sprintf("absent names %v", want),
				Actual:   fmt.Sprintf("absent names %v", got),
			}
		}
	}
	return nil
}

// assertPoseRestored checks each block sits at its captured pose, under its
// captured parent, with exact matrix equality.
func assertPoseRestored(ctx context.Context, sim *fakesim.Sim, out *sequence.Outcome, blocks []string) error {
	if out.Snapshot == nil {
		return &AssertionError{
			Type:     AssertPoseRestored,
			Expected: "captured block snapshot",
			Actual:   "run captured nothing",
		}
	}
	for _, name := range blocks {
		state, ok := out.Snapshot[scene.Canonical(name)]
		if !ok {
			return &AssertionError{
				Type:     AssertPoseRestored,
				Expected: fmt.Sprintf("block %q in snapshot", name),
				Actual:   "not captured",
			}
		}
		item, err := sim.Lookup(ctx, name, scene.TypeObject)
		if err != nil {
			return err
		}
		if !item.Valid() {
			return &AssertionError{
				Type:     AssertPoseRestored,
				Expected: fmt.Sprintf("block %q in scene", name),
				Actual:   "lookup returned nothing",
			}
		}
		pose, err := sim.PoseOf(ctx, item)
		if err != nil {
			return err
		}
		if !pose.Eq(state.Pose) {
			return &AssertionError{
				Type:     AssertPoseRestored,
				Expected: fmt.Sprintf("block %q at captured pose %v", name, state.Pose.Mat),
				Actual:   fmt.Sprintf("pose %v", pose.Mat),
			}
		}
		parent, err := sim.ParentOf(ctx, item)
		if err != nil {
			return err
		}
		if parent.Name != state.Parent {
			return &AssertionError{
				Type:     AssertPoseRestored,
				Expected: fmt.Sprintf("block %q parented to %q", name, state.Parent),
				Actual:   fmt.Sprintf("parent %q", parent.Name),
			}
		}
	}
	return nil
}
