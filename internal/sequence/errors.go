package sequence

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes run failures.
type ErrorCode string

const (
	// ErrCodeMissingItem is a scene item that failed to resolve, either
	// during station resolution (before any motion) or at point of use
	// for an optional item.
	ErrCodeMissingItem ErrorCode = "MISSING_ITEM"

	// ErrCodeMotionFailed is a motion the simulator rejected or aborted
	// (unreachable pose, simulated fault).
	ErrCodeMotionFailed ErrorCode = "MOTION_FAILED"

	// ErrCodeLinkFailed is a transport or protocol failure on the
	// simulator link.
	ErrCodeLinkFailed ErrorCode = "LINK_FAILED"

	// ErrCodeBadStep is a step the runner cannot execute, e.g. a gripper
	// step in a procedure without a gripper. Normally caught at compile
	// time; kept as a guard for hand-built procedures.
	ErrCodeBadStep ErrorCode = "BAD_STEP"

	// ErrCodeJournal is a failure persisting the trace. The run aborts:
	// a run whose trace cannot be captured cannot be reset or replayed.
	ErrCodeJournal ErrorCode = "JOURNAL_FAILED"
)

// RunError is a failed run. Step is the zero-based index of the failing
// step, or -1 when the run aborted before any step executed (station
// resolution, capture).
type RunError struct {
	Code    ErrorCode
	Step    int
	Message string
	Err     error
}

func (e *RunError) Error() string {
	if e.Step >= 0 {
		return fmt.Sprintf("%s at step %d: %s", e.Code, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is a RunError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var rerr *RunError
	return errors.As(err, &rerr) && rerr.Code == code
}
