package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grasplab/pickseq/internal/sequence"
)

// Run status values.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// StartRun inserts a run record in 'running' state. Duplicate IDs are
// silently ignored (idempotent).
func (j *Journal) StartRun(ctx context.Context, id, procedure string, startedAt time.Time) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, procedure, started_at, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, procedure, startedAt.UTC().Format(time.RFC3339), StatusRunning)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun marks the run's final status.
func (j *Journal) FinishRun(ctx context.Context, id, status string, finishedAt time.Time) error {
	if status != StatusOK && status != StatusFailed {
		return fmt.Errorf("finish run: invalid status %q", status)
	}
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ? WHERE id = ?
	`, status, finishedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// WriteSnapshot persists the captured block placements for a run. Poses are
// stored as their canonical 16-float JSON encoding, the same bytes the
// reset path reads back.
func (j *Journal) WriteSnapshot(ctx context.Context, runID string, snap sequence.Snapshot) error {
	for name, state := range snap {
		poseJSON, err := json.Marshal(state.Pose)
		if err != nil {
			return fmt.Errorf("write capture %q: %w", name, err)
		}
		_, err = j.db.ExecContext(ctx, `
			INSERT INTO captures (run_id, block, parent, pose)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, block) DO NOTHING
		`, runID, name, state.Parent, string(poseJSON))
		if err != nil {
			return fmt.Errorf("write capture %q: %w", name, err)
		}
	}
	return nil
}

// WriteEvent appends one trace event. Duplicate (run, seq) writes are
// silently ignored so a re-delivered event cannot corrupt the trace.
func (j *Journal) WriteEvent(ctx context.Context, runID string, ev sequence.TraceEvent) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trace (run_id, seq, kind, item, detail)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, runID, ev.Seq, ev.Kind, ev.Item, ev.Detail)
	if err != nil {
		return fmt.Errorf("write event seq %d: %w", ev.Seq, err)
	}
	return nil
}

// RunSink adapts the journal to sequence.EventSink for one run.
type RunSink struct {
	Journal *Journal
	RunID   string
}

// Event implements sequence.EventSink. Writes detach from the run context
// so events emitted around an interrupt still land in the journal.
func (s RunSink) Event(ctx context.Context, ev sequence.TraceEvent) error {
	return s.Journal.WriteEvent(context.WithoutCancel(ctx), s.RunID, ev)
}

var _ sequence.EventSink = RunSink{}
