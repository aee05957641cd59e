package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type namedHandler struct {
	name    string
	handler EventHandler
}

// InMemoryEventEmitter fans each event out to named sinks, synchronously
// and in registration order. Every sink sees every event: a failing or
// panicking sink is reported and the remaining sinks still run.
//
// It is both an EventEmitter and an EventHandler, so it can sit behind a
// queue that delivers to a single handler.
type InMemoryEventEmitter struct {
	mu       sync.RWMutex
	handlers []namedHandler
	logger   *slog.Logger
}

var (
	_ EventEmitter = (*InMemoryEventEmitter)(nil)
	_ EventHandler = (*InMemoryEventEmitter)(nil)
)

// NewInMemoryEventEmitter creates an emitter with no sinks.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: logger.With("component", "event_fanout"),
	}
}

// RegisterHandler adds a sink. name labels the sink in logs and errors.
func (e *InMemoryEventEmitter) RegisterHandler(name string, handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, namedHandler{name: name, handler: handler})
	e.logger.Debug("registered event sink", "sink", name, "handler_count", len(e.handlers))
}

// HandlerCount returns the number of registered sinks.
func (e *InMemoryEventEmitter) HandlerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// HandleEvent implements EventHandler by emitting the event.
func (e *InMemoryEventEmitter) HandleEvent(ctx context.Context, event *StatusChangedEvent) error {
	return e.EmitEvent(ctx, event)
}

// EmitEvent delivers event to every sink. The returned error joins the
// failures of all sinks, each prefixed with the sink name.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *StatusChangedEvent) error {
	e.mu.RLock()
	handlers := make([]namedHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		e.logger.Warn("no sinks registered for event",
			"event_id", event.ID,
			"task_id", event.TaskID)
		return nil
	}

	var errs []error
	for _, h := range handlers {
		if err := deliver(ctx, h.handler, event); err != nil {
			e.logger.Warn("event sink failed",
				"sink", h.name,
				"error", err,
				"event_id", event.ID,
				"task_id", event.TaskID)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}

	return errors.Join(errs...)
}

// deliver calls handler, converting a panic into an error.
func deliver(ctx context.Context, handler EventHandler, event *StatusChangedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.HandleEvent(ctx, event)
}
