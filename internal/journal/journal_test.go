package journal

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasplab/pickseq/internal/sequence"
	"github.com/grasplab/pickseq/internal/spatial"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, j.StartRun(ctx, "run-1", "pick_place", started))

	run, err := j.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "pick_place", run.Procedure)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, "2025-03-01T10:00:00Z", run.StartedAt)
	assert.Empty(t, run.FinishedAt)

	require.NoError(t, j.FinishRun(ctx, "run-1", StatusOK, started.Add(30*time.Second)))
	run, err = j.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, run.Status)
	assert.Equal(t, "2025-03-01T10:00:30Z", run.FinishedAt)
}

func TestJournal_StartRunIdempotent(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	started := time.Now()
	require.NoError(t, j.StartRun(ctx, "run-1", "pick_place", started))
	require.NoError(t, j.StartRun(ctx, "run-1", "pick_place", started))

	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestJournal_FinishRunRejectsBadStatus(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.StartRun(ctx, "run-1", "pick_place", time.Now()))
	err := j.FinishRun(ctx, "run-1", "exploded", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestJournal_GetRunNotFound(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.GetRun(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNoRun)
}

func TestJournal_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, j.StartRun(ctx, "run-old", "pick_place", base))
	require.NoError(t, j.StartRun(ctx, "run-new", "pick_place", base.Add(time.Minute)))

	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-old", runs[1].ID)
}

func TestJournal_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.StartRun(ctx, "run-1", "pick_place", time.Now()))

	snap := sequence.Snapshot{
		"Part1": {Parent: "Frame Pick", Pose: spatial.FromXYZRPW(300, 200, 25, 0, 0, 0)},
		"Part2": {Parent: "Frame Place", Pose: spatial.FromXYZRPW(300, -200, 25, 0, 0, 90)},
	}
	require.NoError(t, j.WriteSnapshot(ctx, "run-1", snap))
	// Second write is a no-op, not a constraint violation.
	require.NoError(t, j.WriteSnapshot(ctx, "run-1", snap))

	got, err := j.ReadSnapshot(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, snap["Part1"].Parent, got["Part1"].Parent)
	assert.True(t, snap["Part1"].Pose.Eq(got["Part1"].Pose), "pose must round-trip exactly")
	assert.True(t, snap["Part2"].Pose.Eq(got["Part2"].Pose), "pose must round-trip exactly")
}

func TestJournal_ReadSnapshotUnknownRun(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.ReadSnapshot(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNoRun)
}

func TestJournal_TraceRoundTrip(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.StartRun(ctx, "run-1", "pick_place", time.Now()))

	events := []sequence.TraceEvent{
		{Seq: 1, Kind: sequence.EventResolve, Detail: "resolved 8 items"},
		{Seq: 2, Kind: sequence.EventCapture, Item: "Part1", Detail: "parent=Frame Pick"},
		{Seq: 3, Kind: "step", Item: "UR3e", Detail: "move joint to Home"},
	}
	sink := RunSink{Journal: j, RunID: "run-1"}
	for _, ev := range events {
		require.NoError(t, sink.Event(ctx, ev))
	}
	// Re-delivered event is dropped, not duplicated.
	require.NoError(t, sink.Event(ctx, events[2]))

	got, err := j.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestJournal_ExportImportArchive(t *testing.T) {
	ctx := context.Background()
	src := openTestJournal(t)

	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, src.StartRun(ctx, "run-1", "pick_place", started))
	require.NoError(t, src.WriteSnapshot(ctx, "run-1", sequence.Snapshot{
		"Part1": {Parent: "Frame Pick", Pose: spatial.FromXYZRPW(300, 200, 25, 0, 0, 0)},
	}))
	require.NoError(t, src.WriteEvent(ctx, "run-1", sequence.TraceEvent{
		Seq: 1, Kind: sequence.EventResolve, Detail: "resolved 8 items",
	}))
	require.NoError(t, src.FinishRun(ctx, "run-1", StatusOK, started.Add(time.Minute)))

	var buf bytes.Buffer
	require.NoError(t, src.ExportArchive(ctx, "run-1", &buf))

	dst := openTestJournal(t)
	ar, err := dst.ImportArchive(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "run-1", ar.Run.ID)

	run, err := dst.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, run.Status)
	assert.Equal(t, "2025-03-01T10:01:00Z", run.FinishedAt)

	snap, err := dst.ReadSnapshot(ctx, "run-1")
	require.NoError(t, err)
	require.Contains(t, snap, "Part1")
	assert.True(t, snap["Part1"].Pose.Eq(spatial.FromXYZRPW(300, 200, 25, 0, 0, 0)))

	trace, err := dst.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, trace, 1)
	assert.Equal(t, sequence.EventResolve, trace[0].Kind)

	// Importing the same archive twice is a no-op.
	_, err = dst.ImportArchive(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	runs, err := dst.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestJournal_ExportUnknownRun(t *testing.T) {
	j := openTestJournal(t)

	var buf bytes.Buffer
	err := j.ExportArchive(context.Background(), "nope", &buf)
	require.ErrorIs(t, err, ErrNoRun)
}
