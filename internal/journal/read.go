package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/grasplab/pickseq/internal/sequence"
	"github.com/grasplab/pickseq/internal/spatial"
)

// ErrNoRun is returned when a run ID does not exist in the journal.
var ErrNoRun = errors.New("run not found")

// GetRun returns one run record.
func (j *Journal) GetRun(ctx context.Context, id string) (*Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, procedure, started_at, COALESCE(finished_at, ''), status
		FROM runs WHERE id = ?
	`, id)

	var r Run
	if err := row.Scan(&r.ID, &r.Procedure, &r.StartedAt, &r.FinishedAt, &r.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, id)
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// ListRuns returns all runs, newest first (UUIDv7 IDs sort by time, but we
// order on started_at so fixed test IDs behave too).
func (j *Journal) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := j.query(ctx, `
		SELECT id, procedure, started_at, COALESCE(finished_at, ''), status
		FROM runs ORDER BY started_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Procedure, &r.StartedAt, &r.FinishedAt, &r.Status); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ReadSnapshot reassembles the captured block placements for a run.
func (j *Journal) ReadSnapshot(ctx context.Context, runID string) (sequence.Snapshot, error) {
	rows, err := j.query(ctx, `
		SELECT block, parent, pose FROM captures WHERE run_id = ? ORDER BY block
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer rows.Close()

	snap := make(sequence.Snapshot)
	for rows.Next() {
		var block, parent, poseJSON string
		if err := rows.Scan(&block, &parent, &poseJSON); err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		var pose spatial.Pose
		if err := json.Unmarshal([]byte(poseJSON), &pose); err != nil {
			return nil, fmt.Errorf("read snapshot: block %q: %w", block, err)
		}
		snap[block] = sequence.BlockState{Parent: parent, Pose: pose}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(snap) == 0 {
		if _, err := j.GetRun(ctx, runID); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// ReadTrace returns a run's trace events in seq order.
func (j *Journal) ReadTrace(ctx context.Context, runID string) ([]sequence.TraceEvent, error) {
	rows, err := j.query(ctx, `
		SELECT seq, kind, item, detail FROM trace WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	defer rows.Close()

	var trace []sequence.TraceEvent
	for rows.Next() {
		var ev sequence.TraceEvent
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.Item, &ev.Detail); err != nil {
			return nil, fmt.Errorf("read trace: %w", err)
		}
		trace = append(trace, ev)
	}
	return trace, rows.Err()
}
