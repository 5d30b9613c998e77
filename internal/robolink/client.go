package robolink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/grasplab/pickseq/internal/scene"
	"github.com/grasplab/pickseq/internal/spatial"
)

const writeTimeout = 10 * time.Second

// Client is the live Session implementation over a websocket connection.
//
// One connection is held for the whole run and released by Close. The
// client is strictly request/response and single-threaded; it performs no
// internal locking. Motion responses arrive only after the simulator
// finishes (and settles) the motion, which is what gives every Session call
// its blocking semantics.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
	seq    uint64
}

// Dial connects to the simulator's remote-control endpoint,
// e.g. ws://localhost:9544/v1/link.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("robolink: dial %s: %w", url, err)
	}
	logger.Debug("simulator link established", "url", url)
	return &Client{conn: conn, logger: logger}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip sends one request frame and waits for its response frame.
// Any transport or protocol failure poisons the link; callers should not
// retry through the same client.
func (c *Client) roundTrip(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.seq++
	req.Seq = c.seq
	req.Ver = Version

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("robolink: send %s: %w", req.Op, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		// Motion calls block until the simulator reports completion;
		// no read deadline unless the caller set one via context.
		_ = c.conn.SetReadDeadline(time.Time{})
	}

	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("robolink: recv %s: %w", req.Op, err)
	}

	var raw any
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, fmt.Errorf("robolink: decode %s response: %w", req.Op, err)
	}
	if err := responseSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("robolink: invalid %s response frame: %w", req.Op, err)
	}

	var resp Response
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, fmt.Errorf("robolink: decode %s response: %w", req.Op, err)
	}
	if resp.Seq != req.Seq {
		return nil, fmt.Errorf("robolink: response seq %d does not match request seq %d", resp.Seq, req.Seq)
	}
	if !resp.OK {
		if !IsKnownCode(resp.Code) {
			c.logger.Warn("simulator returned unknown error code", "code", resp.Code)
		}
		return nil, &RemoteError{Code: resp.Code, Message: resp.Error}
	}
	return &resp, nil
}

// Lookup resolves a named scene item. An absent name yields an invalid Item
// and a nil error, mirroring the simulator's own lookup semantics.
func (c *Client) Lookup(ctx context.Context, name string, t scene.ItemType) (scene.Item, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpLookup, Name: scene.Canonical(name), Type: t.String()})
	if err != nil {
		return scene.Item{}, err
	}
	if resp.Item == nil || !resp.Item.Valid {
		return scene.Item{Name: name, Type: t}, nil
	}
	typ, err := scene.ParseItemType(resp.Item.Type)
	if err != nil {
		return scene.Item{}, fmt.Errorf("robolink: lookup %q: %w", name, err)
	}
	return scene.Item{ID: resp.Item.ID, Name: resp.Item.Name, Type: typ}, nil
}

// SetParam sets a sticky motion parameter.
func (c *Client) SetParam(ctx context.Context, item scene.Item, p Param, value float64) error {
	_, err := c.roundTrip(ctx, Request{Op: OpSetParam, Item: item.ID, Param: string(p), Value: value})
	return err
}

// SetFrame sets the active reference frame for subsequent moves.
func (c *Client) SetFrame(ctx context.Context, item, frame scene.Item) error {
	_, err := c.roundTrip(ctx, Request{Op: OpSetFrame, Item: item.ID, Frame: frame.ID})
	return err
}

// MoveJ performs a joint-space move; blocks until the motion completes.
func (c *Client) MoveJ(ctx context.Context, item scene.Item, m Motion) error {
	_, err := c.roundTrip(ctx, Request{Op: OpMoveJ, Item: item.ID, Target: m.Target, Joints: m.Joints})
	return err
}

// MoveL performs a Cartesian linear move; blocks until the motion completes.
func (c *Client) MoveL(ctx context.Context, item scene.Item, m Motion) error {
	_, err := c.roundTrip(ctx, Request{Op: OpMoveL, Item: item.ID, Target: m.Target, Joints: m.Joints})
	return err
}

// AttachClosest attaches the nearest candidate object to the tool.
func (c *Client) AttachClosest(ctx context.Context, tool scene.Item) (scene.Item, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpAttach, Item: tool.ID})
	if err != nil {
		return scene.Item{}, err
	}
	return itemFromInfo(resp.Item)
}

// DetachAll releases everything the tool holds, re-parenting to frame.
func (c *Client) DetachAll(ctx context.Context, tool, frame scene.Item) error {
	_, err := c.roundTrip(ctx, Request{Op: OpDetach, Item: tool.ID, Frame: frame.ID})
	return err
}

// PoseOf returns the item's absolute pose.
func (c *Client) PoseOf(ctx context.Context, item scene.Item) (spatial.Pose, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpGetPose, Item: item.ID})
	if err != nil {
		return spatial.Pose{}, err
	}
	if len(resp.Pose) != 16 {
		return spatial.Pose{}, fmt.Errorf("robolink: pose of %s: expected 16 elements, got %d", item, len(resp.Pose))
	}
	var p spatial.Pose
	copy(p.Mat[:], resp.Pose)
	return p, nil
}

// SetPose sets the item's absolute pose.
func (c *Client) SetPose(ctx context.Context, item scene.Item, p spatial.Pose) error {
	_, err := c.roundTrip(ctx, Request{Op: OpSetPose, Item: item.ID, Pose: p.Mat[:]})
	return err
}

// ParentOf returns the item's parent in the scene tree.
func (c *Client) ParentOf(ctx context.Context, item scene.Item) (scene.Item, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpGetParent, Item: item.ID})
	if err != nil {
		return scene.Item{}, err
	}
	return itemFromInfo(resp.Item)
}

// SetParent re-parents the item.
func (c *Client) SetParent(ctx context.Context, item, parent scene.Item) error {
	_, err := c.roundTrip(ctx, Request{Op: OpSetParent, Item: item.ID, Frame: parent.ID})
	return err
}

func itemFromInfo(info *ItemInfo) (scene.Item, error) {
	if info == nil || !info.Valid {
		return scene.Item{}, nil
	}
	typ, err := scene.ParseItemType(info.Type)
	if err != nil {
		return scene.Item{}, fmt.Errorf("robolink: %w", err)
	}
	return scene.Item{ID: info.ID, Name: info.Name, Type: typ}, nil
}

var _ Session = (*Client)(nil)
