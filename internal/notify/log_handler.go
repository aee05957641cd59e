package notify

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskflow-api/internal/events"
)

// LogHandler records every status change as a structured log line.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler. A nil logger uses slog.Default().
func NewLogHandler(logger *slog.Logger) *LogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{logger: logger.With(slog.String("sink", "log"))}
}

// HandleEvent implements events.EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *events.StatusChangedEvent) error {
	h.logger.InfoContext(ctx, "task status changed",
		slog.String("event_id", event.ID.String()),
		slog.Int64("task_id", event.TaskID),
		slog.String("status", string(event.NewStatus)),
		slog.Time("occurred_at", event.OccurredAt))
	return nil
}
