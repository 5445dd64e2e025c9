package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventProcessStarted   EventType = "process:started"
	EventProcessOutput    EventType = "process:output"
	EventProcessProgress  EventType = "process:progress"
	EventProcessCompleted EventType = "process:completed"
	EventProcessError     EventType = "process:error"
	EventDedupCompleted   EventType = "dedup:completed"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// Subscription identifies a registered handler so it can be removed later.
type Subscription int

// EventService manages the pub/sub event bus
type EventService interface {
	// Subscribe registers a handler for an event type and returns a token
	// usable with Unsubscribe
	Subscribe(eventType EventType, handler EventHandler) (Subscription, error)

	// Unsubscribe removes a previously registered handler
	Unsubscribe(eventType EventType, sub Subscription) error

	// Publish sends an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
