package robolink

// Wire protocol: one JSON request frame per command, one JSON response frame
// per request, correlated by seq. The connection is used strictly
// request/response; the simulator never pushes unsolicited frames.

// Version is the protocol version sent in every request.
const Version = "1"

// Request operations.
const (
	OpLookup    = "lookup"
	OpSetParam  = "set_param"
	OpSetFrame  = "set_frame"
	OpMoveJ     = "move_j"
	OpMoveL     = "move_l"
	OpAttach    = "attach"
	OpDetach    = "detach"
	OpGetPose   = "get_pose"
	OpSetPose   = "set_pose"
	OpGetParent = "get_parent"
	OpSetParent = "set_parent"
)

// Request is the client -> simulator frame. Fields beyond Seq, Ver and Op
// are op-specific; unused fields are omitted from the encoding.
type Request struct {
	Seq    uint64    `json:"seq"`
	Ver    string    `json:"ver"`
	Op     string    `json:"op"`
	Name   string    `json:"name,omitempty"`      // lookup
	Type   string    `json:"item_type,omitempty"` // lookup
	Item   uint64    `json:"item,omitempty"`      // everything else
	Frame  uint64    `json:"frame,omitempty"`     // set_frame, detach, set_parent
	Param  string    `json:"param,omitempty"`     // set_param
	Value  float64   `json:"value,omitempty"`     // set_param
	Target string    `json:"target,omitempty"`    // move_j, move_l
	Joints []float64 `json:"joints,omitempty"`    // move_j
	Pose   []float64 `json:"pose,omitempty"`      // set_pose
}

// ItemInfo describes a scene item in a response frame.
type ItemInfo struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"item_type"`
	Valid bool   `json:"valid"`
}

// Response is the simulator -> client frame. OK distinguishes success from
// failure; on failure Code carries one of the E_* constants and Error a
// human-readable message.
type Response struct {
	Seq   uint64    `json:"seq"`
	OK    bool      `json:"ok"`
	Code  string    `json:"code,omitempty"`
	Error string    `json:"error,omitempty"`
	Item  *ItemInfo `json:"item,omitempty"`
	Pose  []float64 `json:"pose,omitempty"`
}
