package harness

import (
	"github.com/grasplab/pickseq/internal/sequence"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the run matched the expect clause and every
	// assertion held.
	Pass bool `json:"pass"`

	// RunID is the (fixed) run ID the scenario executed under.
	RunID string `json:"run_id"`

	// Trace contains the events the run emitted, in seq order. Failed runs
	// carry the partial trace up to the failing step.
	Trace []sequence.TraceEvent `json:"trace"`

	// Missing lists optional station names that did not resolve.
	Missing []string `json:"missing,omitempty"`

	// MotionCount is the number of motion commands the fake simulator
	// received. The abort-before-motion assertion checks it is zero.
	MotionCount int `json:"motion_count"`

	// RunErr is the structured run error, nil on success.
	RunErr *sequence.RunError `json:"run_err,omitempty"`

	// Errors contains assertion failure messages. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []sequence.TraceEvent{}, Errors: []string{}}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
