package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/redact"
)

// ConnectNATS opens a NATS connection with reconnect behaviour suitable for
// a long-running publisher.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(url,
		nats.Name("taskflow-api"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", redact.Error(err)))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", redact.String(c.ConnectedUrl())))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSHandler publishes each event as JSON on a subject.
type NATSHandler struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSHandler creates a NATSHandler publishing on subject through conn.
// The caller owns conn.
func NewNATSHandler(conn *nats.Conn, subject string, logger *slog.Logger) (*NATSHandler, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection cannot be nil")
	}
	if subject == "" {
		return nil, fmt.Errorf("nats subject cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &NATSHandler{
		conn:    conn,
		subject: subject,
		logger:  logger.With(slog.String("sink", "nats"), slog.String("subject", subject)),
	}, nil
}

// HandleEvent implements events.EventHandler.
func (h *NATSHandler) HandleEvent(_ context.Context, event *events.StatusChangedEvent) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := nats.NewMsg(h.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID.String())

	if err := h.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", h.subject, err)
	}

	h.logger.Debug("event published", slog.String("event_id", event.ID.String()))
	return nil
}
