package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		err := emitter.EmitEvent(context.Background(), NewStatusChangedEvent(1, domain.TaskStatusPending))
		assert.NoError(t, err)
		assert.Zero(t, emitter.HandlerCount())
	})

	t.Run("every sink receives the event", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler("first", handler1)
		emitter.RegisterHandler("second", handler2)

		event := NewStatusChangedEvent(2, domain.TaskStatusCompleted)
		assert.NoError(t, emitter.HandleEvent(context.Background(), event))

		assert.Equal(t, 2, emitter.HandlerCount())
		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("failures are joined and do not stop later sinks", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(nil)
		webhookErr := errors.New("503 from webhook")
		failing := &MockEventHandler{HandlerError: webhookErr}
		successHandler := &MockEventHandler{}
		emitter.RegisterHandler("webhook", failing)
		emitter.RegisterHandler("nats", EventHandlerFunc(func(context.Context, *StatusChangedEvent) error {
			panic("connection gone")
		}))
		emitter.RegisterHandler("log", successHandler)

		err := emitter.EmitEvent(context.Background(), NewStatusChangedEvent(3, domain.TaskStatusInProgress))
		require.Error(t, err)
		assert.ErrorIs(t, err, webhookErr)
		assert.Contains(t, err.Error(), "webhook: 503 from webhook")
		assert.Contains(t, err.Error(), "nats: handler panicked: connection gone")

		assert.Equal(t, 1, failing.HandledCount)
		assert.Equal(t, 1, successHandler.HandledCount)
	})
}
