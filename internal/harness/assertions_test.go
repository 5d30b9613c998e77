package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasplab/pickseq/internal/sequence"
)

var sampleTrace = []sequence.TraceEvent{
	{Seq: 1, Kind: "resolve", Detail: "7 items resolved, 0 missing"},
	{Seq: 2, Kind: "open", Item: "RobotiQ 2F-85", Detail: "open"},
	{Seq: 3, Kind: "move_joint", Item: "UR3e", Detail: `move_joint robot -> "Home"`},
	{Seq: 4, Kind: "move_joint", Item: "UR3e", Detail: `move_joint robot -> "Aprox1"`},
	{Seq: 5, Kind: "close", Item: "RobotiQ 2F-85", Detail: "close"},
}

func TestAssertTraceOrder(t *testing.T) {
	assert.NoError(t, assertTraceOrder(sampleTrace, []string{"resolve", "open", "close"}))
	assert.NoError(t, assertTraceOrder(sampleTrace, []string{"move_joint", "move_joint"}))

	err := assertTraceOrder(sampleTrace, []string{"close", "open"})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceOrder, aerr.Type)
	assert.Contains(t, aerr.Error(), `first unmatched "open"`)

	// Three move_joints is one more than the trace holds.
	assert.Error(t, assertTraceOrder(sampleTrace, []string{"move_joint", "move_joint", "move_joint"}))
}

func TestAssertTraceContains(t *testing.T) {
	assert.NoError(t, assertTraceContains(sampleTrace, Assertion{Kind: "open"}))
	assert.NoError(t, assertTraceContains(sampleTrace, Assertion{Item: "UR3e"}))
	assert.NoError(t, assertTraceContains(sampleTrace, Assertion{
		Kind: "move_joint", Item: "UR3e", Detail: `move_joint robot -> "Aprox1"`,
	}))

	err := assertTraceContains(sampleTrace, Assertion{Kind: "move_joint", Item: "RobotiQ 2F-85"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in trace")
}

func TestAssertTraceCount(t *testing.T) {
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Kind: "move_joint", Count: 2}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Kind: "detach", Count: 0}))

	err := assertTraceCount(sampleTrace, Assertion{Kind: "open", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 events")
}

func TestAssertMissing(t *testing.T) {
	assert.NoError(t, assertMissing(nil, nil))
	assert.NoError(t, assertMissing([]string{"A", "B"}, []string{"B", "A"}))
	assert.Error(t, assertMissing([]string{"A"}, nil))
	assert.Error(t, assertMissing([]string{"A"}, []string{"B"}))
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceOrder,
		Expected: "x before y",
		Actual:   "y before x",
		Trace:    sampleTrace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "expected: x before y")
	assert.Contains(t, msg, "[3] move_joint UR3e")
}
