// Package testutil provides deterministic helpers for tests: a fixed run-ID
// generator and a resettable logical clock. With both in place the same
// scenario produces byte-identical traces, which is what the golden files
// rely on.
package testutil

// FixedRunID returns the same run ID every time.
//
// Implements sequence.RunIDGenerator. The ID is typically set in the
// scenario YAML; empty defaults to "test-run-default".
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a generator that always returns id.
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunID) Generate() string {
	return g.id
}
