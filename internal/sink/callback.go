package sink

import "context"

// EventFunc is called for each event (in-process, zero serialisation).
type EventFunc func(ctx context.Context, ev Event) error

// Callback delivers events via a Go function call. Used when the
// scraper is embedded in another binary and the host wants events as
// in-memory calls instead of serialized output.
type Callback struct {
	onEvent EventFunc
}

// NewCallback creates a Callback sink. The handler may be nil.
func NewCallback(onEvent EventFunc) *Callback {
	return &Callback{onEvent: onEvent}
}

func (c *Callback) Send(ctx context.Context, ev Event) error {
	if c.onEvent != nil {
		return c.onEvent(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
