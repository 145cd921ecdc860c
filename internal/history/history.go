package history

import (
	"context"
	"log/slog"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
	// EventLost is recorded when a running server's process disappeared without a Stop.
	EventLost EventType = "lost"
)

// Event is one server lifecycle transition exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`
	PID        int       `json:"pid"`
	Port       int       `json:"port"`
	Error      string    `json:"error,omitempty"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Dispatch sends e to every sink. Failures are logged and otherwise ignored.
func Dispatch(ctx context.Context, log *slog.Logger, sinks []Sink, e Event) {
	if log == nil {
		log = slog.Default()
	}
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, e); err != nil {
			log.Warn("history sink failed", "event", string(e.Type), "name", e.Name, "error", err)
		}
	}
}

// CloseAll closes the sinks that hold resources.
func CloseAll(sinks []Sink) {
	for _, s := range sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}
