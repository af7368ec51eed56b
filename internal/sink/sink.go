// Package sink defines output backends for scrape run events.
package sink

import "context"

// Event is a status update emitted while a scrape run progresses.
type Event struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Event types.
const (
	TypeProgress = "progress"
	TypeDone     = "done"
	TypeError    = "error"
)

// Progress builds a progress event.
func Progress(text string) Event { return Event{Type: TypeProgress, Text: text} }

// Done builds a completion event.
func Done(text string) Event { return Event{Type: TypeDone, Text: text} }

// Error builds an error event.
func Error(text string) Event { return Event{Type: TypeError, Text: text} }

// Sink is the output interface. Implementations deliver events to
// different backends (stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}
