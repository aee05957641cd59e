package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// StatusChangedEvent announces that a task's status was updated.
// It is created after the change is committed and is delivered at most once.
type StatusChangedEvent struct {
	// ID is a unique identifier for this event, used to correlate log lines
	ID uuid.UUID `json:"id"`

	// TaskID identifies the task whose status changed
	TaskID int64 `json:"task_id"`

	// NewStatus is the status the task transitioned to
	NewStatus domain.TaskStatus `json:"new_status"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewStatusChangedEvent creates a StatusChangedEvent for the given task and status.
func NewStatusChangedEvent(taskID int64, status domain.TaskStatus) *StatusChangedEvent {
	return &StatusChangedEvent{
		ID:         uuid.New(),
		TaskID:     taskID,
		NewStatus:  status,
		OccurredAt: time.Now().UTC(),
	}
}

// Marshal encodes the event as JSON for external sinks.
func (e *StatusChangedEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *StatusChangedEvent) error
}

// EventHandlerFunc adapts an ordinary function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *StatusChangedEvent) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *StatusChangedEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *StatusChangedEvent) error
}
