package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/taskflow-api/internal/events"
)

// DefaultWebhookTimeout bounds a single webhook delivery.
const DefaultWebhookTimeout = 3 * time.Second

// WebhookHandler POSTs each event as JSON to a fixed URL.
// Any 2xx response counts as delivered.
type WebhookHandler struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler for url. A zero timeout uses
// DefaultWebhookTimeout.
func NewWebhookHandler(url string, timeout time.Duration, logger *slog.Logger) (*WebhookHandler, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url cannot be empty")
	}
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookHandler{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(slog.String("sink", "webhook")),
	}, nil
}

// HandleEvent implements events.EventHandler.
func (h *WebhookHandler) HandleEvent(ctx context.Context, event *events.StatusChangedEvent) error {
	body, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", event.ID.String())

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	h.logger.Debug("webhook delivered",
		slog.String("event_id", event.ID.String()),
		slog.Int("status_code", resp.StatusCode))
	return nil
}
