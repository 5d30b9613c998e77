package sequence

import "context"

// Event kinds beyond the step vocabulary. Step events use the step kind
// itself ("move_joint", "open", ...).
const (
	EventResolve = "resolve"
	EventCapture = "capture"
)

// TraceEvent is one entry in a run's execution trace. Events are emitted
// after the underlying call succeeds, in execution order, stamped by the
// logical clock.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Item   string `json:"item,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// EventSink receives trace events as the run produces them. The journal is
// the durable sink; the CLI adds a console sink for operator feedback.
type EventSink interface {
	Event(ctx context.Context, ev TraceEvent) error
}

// SinkFunc adapts a function to an EventSink.
type SinkFunc func(ctx context.Context, ev TraceEvent) error

// Event implements EventSink.
func (f SinkFunc) Event(ctx context.Context, ev TraceEvent) error {
	return f(ctx, ev)
}

// MultiSink fans one event out to several sinks, stopping at the first
// error.
func MultiSink(sinks ...EventSink) EventSink {
	return SinkFunc(func(ctx context.Context, ev TraceEvent) error {
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Event(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// Collector is an in-memory EventSink for tests and the harness.
type Collector struct {
	Events []TraceEvent
}

// Event implements EventSink.
func (c *Collector) Event(_ context.Context, ev TraceEvent) error {
	c.Events = append(c.Events, ev)
	return nil
}
