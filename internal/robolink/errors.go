package robolink

import "fmt"

// Wire error codes returned by the simulator.
const (
	// Protocol/frame validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Scene and item state.
	ErrUnknownItem = "E_UNKNOWN_ITEM"
	ErrBadParam    = "E_BAD_PARAM"

	// Motion layer.
	ErrUnreachable  = "E_UNREACHABLE"
	ErrMotionFailed = "E_MOTION_FAILED"
	ErrNothingClose = "E_NOTHING_CLOSE"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnknownItem:     {},
	ErrBadParam:        {},
	ErrUnreachable:     {},
	ErrMotionFailed:    {},
	ErrNothingClose:    {},
	ErrInternal:        {},
}

// IsKnownCode reports whether code is part of the protocol. The empty code
// is valid on success frames.
func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// RemoteError is a failure reported by the simulator itself, as opposed to
// a transport failure on the link.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMotionError reports whether the error is a motion-layer failure
// (unreachable pose, simulated collision, drive fault).
func (e *RemoteError) IsMotionError() bool {
	return e.Code == ErrUnreachable || e.Code == ErrMotionFailed
}
