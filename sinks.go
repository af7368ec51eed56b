package tilewalk

import (
	"io"
	"log/slog"

	"github.com/hazyhaar/tilewalk/internal/sink"
)

// Sink is the output interface for scrape events.
type Sink = sink.Sink

// Event is a status update emitted while a run progresses.
type Event = sink.Event

// EventFunc is called for each event by a callback sink.
type EventFunc = sink.EventFunc

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(onEvent EventFunc) Sink {
	return sink.NewCallback(onEvent)
}

// SinksFromConfig builds sinks from configuration entries. Unknown types
// are skipped with a warning.
func SinksFromConfig(cfgs []SinkConfig, w io.Writer, logger *slog.Logger) []Sink {
	if logger == nil {
		logger = slog.Default()
	}
	var out []Sink
	for _, c := range cfgs {
		switch c.Type {
		case "stdout":
			out = append(out, NewStdoutSink(w))
		case "webhook":
			out = append(out, NewWebhookSink(c.URL, logger))
		default:
			logger.Warn("tilewalk: unknown sink type", "type", c.Type)
		}
	}
	return out
}
