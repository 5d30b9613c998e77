package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/grasplab/pickseq/internal/sequence"
)

// Archive is the export bundle for one run: the run record, its captured
// block placements, and the full trace.
type Archive struct {
	Run      Run                   `json:"run"`
	Snapshot sequence.Snapshot     `json:"snapshot"`
	Trace    []sequence.TraceEvent `json:"trace"`
}

// ExportArchive writes a zstd-compressed JSON archive of one run to w.
// Archives move runs between journals, e.g. pulling a failed run off a cell
// controller for inspection.
func (j *Journal) ExportArchive(ctx context.Context, runID string, w io.Writer) error {
	run, err := j.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	snap, err := j.ReadSnapshot(ctx, runID)
	if err != nil {
		return err
	}
	trace, err := j.ReadTrace(ctx, runID)
	if err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("export archive: %w", err)
	}
	enc := json.NewEncoder(zw)
	if err := enc.Encode(Archive{Run: *run, Snapshot: snap, Trace: trace}); err != nil {
		zw.Close()
		return fmt.Errorf("export archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("export archive: %w", err)
	}
	return nil
}

// ImportArchive reads an archive and inserts its run, snapshot and trace.
// All writes are idempotent, so importing the same archive twice is safe.
func (j *Journal) ImportArchive(ctx context.Context, r io.Reader) (*Archive, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("import archive: %w", err)
	}
	defer zr.Close()

	var ar Archive
	if err := json.NewDecoder(zr).Decode(&ar); err != nil {
		return nil, fmt.Errorf("import archive: %w", err)
	}

	startedAt, err := time.Parse(time.RFC3339, ar.Run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("import archive: bad started_at: %w", err)
	}
	if err := j.StartRun(ctx, ar.Run.ID, ar.Run.Procedure, startedAt); err != nil {
		return nil, err
	}
	if ar.Run.Status != StatusRunning && ar.Run.FinishedAt != "" {
		finishedAt, err := time.Parse(time.RFC3339, ar.Run.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("import archive: bad finished_at: %w", err)
		}
		if err := j.FinishRun(ctx, ar.Run.ID, ar.Run.Status, finishedAt); err != nil {
			return nil, err
		}
	}
	if err := j.WriteSnapshot(ctx, ar.Run.ID, ar.Snapshot); err != nil {
		return nil, err
	}
	for _, ev := range ar.Trace {
		if err := j.WriteEvent(ctx, ar.Run.ID, ev); err != nil {
			return nil, err
		}
	}
	return &ar, nil
}
