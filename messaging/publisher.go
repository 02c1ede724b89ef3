package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

type EventType string

const (
	EventNotificationCreated   EventType = "created"
	EventNotificationResponded EventType = "responded"
	EventNotificationPaid      EventType = "paid"
)

// NotificationEvent describes a change to the notification inbox.
type NotificationEvent struct {
	Type        EventType `json:"type"`
	Index       int       `json:"index"`
	StudentCode string    `json:"studentCode"`
	Message     string    `json:"message,omitempty"`
	Timestamp   string    `json:"timestamp"`
	Response    any       `json:"response,omitempty"`
	Paid        bool      `json:"paid"`
}

// Publisher interface for notification events
type Publisher interface {
	Publish(ctx context.Context, event NotificationEvent) error
	Close() error
}

// NATSPublisher publishes events on <prefix>.<type>.
type NATSPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

func NewNATSPublisher(url string, subjectPrefix string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("studentpay-server"))
	if err != nil {
		return nil, err
	}

	logger.Info("NATS publisher initialized", "url", url, "subject_prefix", subjectPrefix)

	return &NATSPublisher{
		conn:          nc,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}, nil
}

// Subject returns the subject an event type is published on
func (p *NATSPublisher) Subject(t EventType) string {
	return p.subjectPrefix + "." + string(t)
}

func (p *NATSPublisher) Publish(ctx context.Context, event NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal event", "error", err)
		return err
	}

	subject := p.Subject(event.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event to NATS", "subject", subject, "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "event published to NATS", "subject", subject, "index", event.Index)
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NopPublisher drops every event. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, NotificationEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
