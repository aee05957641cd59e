package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/taskflow-api/internal/events"
)

// MockEventEmitter records emitted events.
type MockEventEmitter struct {
	EmitEventFn func(ctx context.Context, event *events.StatusChangedEvent) error

	mu     sync.Mutex
	events []*events.StatusChangedEvent
}

var _ events.EventEmitter = (*MockEventEmitter)(nil)

// EmitEvent implements events.EventEmitter.
func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.StatusChangedEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()

	if m.EmitEventFn != nil {
		return m.EmitEventFn(ctx, event)
	}
	return nil
}

// Events returns the emitted events in order.
func (m *MockEventEmitter) Events() []*events.StatusChangedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*events.StatusChangedEvent(nil), m.events...)
}
