package sequence

import "github.com/google/uuid"

// RunIDGenerator produces run identifiers. Production uses UUIDv7Generator;
// tests use testutil.FixedRunID for deterministic traces.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs, so journal
// listings come back in creation order.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
