// Package harness runs conformance scenarios against the real sequencer on
// the in-process fake simulator. A scenario is YAML: a scene fixture, an
// inline CUE procedure, an expect clause for the run's terminal state, and
// assertions over the trace and the final scene.
//
// Every scenario runs in isolation: a fresh simulator, a fresh in-memory
// journal, a fixed run ID and no settle pauses, so the trace is
// deterministic and goldens compare byte for byte.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/grasplab/pickseq/internal/fakesim"
	"github.com/grasplab/pickseq/internal/journal"
	"github.com/grasplab/pickseq/internal/procfile"
	"github.com/grasplab/pickseq/internal/scene"
	"github.com/grasplab/pickseq/internal/sequence"
	"github.com/grasplab/pickseq/internal/spatial"
	"github.com/grasplab/pickseq/internal/testutil"
)

// DefaultRunID keeps golden traces stable across runs.
const DefaultRunID = "test-run-default"

// Run executes a scenario and evaluates its expect clause and assertions.
// The returned error covers harness problems (bad fixture, uncompilable
// procedure); assertion failures land in Result.Errors instead.
func Run(scenario *Scenario) (*Result, error) {
	sim, err := buildScene(scenario.Scene)
	if err != nil {
		return nil, err
	}
	defer sim.Close()

	procs, err := procfile.CompileSource(scenario.Procedure)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}
	if len(procs) != 1 {
		return nil, fmt.Errorf("scenario %q: expected exactly one procedure, got %d", scenario.Name, len(procs))
	}
	proc := procs[0]

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}
	defer j.Close()

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}

	runner := sequence.New(sim,
		sequence.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		sequence.WithRunIDGenerator(testutil.NewFixedRunID(runID)),
		sequence.WithSink(journal.RunSink{Journal: j, RunID: runID}),
		sequence.WithSettle(0),
	)

	ctx := context.Background()
	if err := j.StartRun(ctx, runID, proc.Name, time.Now()); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}
	outcome, runErr := runner.Execute(ctx, proc)
	status := journal.StatusOK
	if runErr != nil {
		status = journal.StatusFailed
	}
	if err := j.FinishRun(ctx, runID, status, time.Now()); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	result := NewResult()
	result.RunID = outcome.RunID
	result.Trace = outcome.Trace
	result.Missing = outcome.Missing
	result.MotionCount = sim.MotionCount()
	if runErr != nil {
		var rerr *sequence.RunError
		if !errors.As(runErr, &rerr) {
			return nil, fmt.Errorf("scenario %q: %w", scenario.Name, runErr)
		}
		result.RunErr = rerr
	}

	checkExpect(result, scenario.Expect)
	for i, a := range scenario.Assertions {
		if err := evalAssertion(ctx, a, result, sim, outcome); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

// checkExpect validates the run's terminal state against the expect clause.
func checkExpect(r *Result, exp *ExpectClause) {
	if exp == nil || exp.Error == "" {
		if r.RunErr != nil {
			r.AddError(fmt.Sprintf("expected success, got %v", r.RunErr))
		}
	} else {
		if r.RunErr == nil {
			r.AddError(fmt.Sprintf("expected error %s, run succeeded", exp.Error))
		} else {
			if string(r.RunErr.Code) != exp.Error {
				r.AddError(fmt.Sprintf("expected error %s, got %s", exp.Error, r.RunErr.Code))
			}
			if exp.Step != nil && r.RunErr.Step != *exp.Step {
				r.AddError(fmt.Sprintf("expected failure at step %d, got step %d", *exp.Step, r.RunErr.Step))
			}
		}
	}
	if exp != nil && exp.AbortBeforeMotion && r.MotionCount != 0 {
		r.AddError(fmt.Sprintf("expected no motion commands, simulator received %d", r.MotionCount))
	}
}

// buildScene constructs the fake simulator from the fixture.
func buildScene(fx SceneFixture) (*fakesim.Sim, error) {
	var sim *fakesim.Sim
	if fx.DemoCell {
		sim = fakesim.NewDemoCell()
	} else {
		sim = fakesim.New()
	}

	for _, it := range fx.Add {
		t, err := scene.ParseItemType(it.Type)
		if err != nil {
			return nil, fmt.Errorf("scene.add %q: %w", it.Name, err)
		}
		pose := spatial.Identity()
		if len(it.At) == 6 {
			pose = spatial.FromXYZRPW(it.At[0], it.At[1], it.At[2], it.At[3], it.At[4], it.At[5])
		}
		if it.Frame != "" {
			if t != scene.TypeObject {
				return nil, fmt.Errorf("scene.add %q: frame is only valid for objects", it.Name)
			}
			sim.AddBlock(it.Name, it.Frame, pose)
			continue
		}
		sim.AddItemAt(it.Name, t, pose)
	}
	for _, name := range fx.Remove {
		sim.Remove(name)
	}
	if fx.AttachRadius > 0 {
		sim.SetAttachRadius(fx.AttachRadius)
	}
	if fx.FailMotion != "" {
		sim.FailNextMotion(fx.FailMotion)
	}
	return sim, nil
}
