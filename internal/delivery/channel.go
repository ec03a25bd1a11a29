package delivery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"insightd/pkg/mq"
)

// Channel is the delivery sink contract. The core hands over plain text
// and trusts the channel to render for its platform.
type Channel interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// LogChannel writes notifications to the log. Used in development and
// whenever no broker is configured.
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, message string) error {
	c.logger.Info("NOTIFICATION", zap.String("message", message))
	return nil
}

// notificationPayload is the wire shape published to the broker.
type notificationPayload struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// AMQPChannel publishes notifications to the topic exchange; whatever
// messaging frontend is bound to the queue does the user-facing render.
type AMQPChannel struct {
	publisher  *mq.Publisher
	routingKey string
}

func NewAMQPChannel(publisher *mq.Publisher, routingKey string) *AMQPChannel {
	if routingKey == "" {
		routingKey = "notification.created"
	}
	return &AMQPChannel{publisher: publisher, routingKey: routingKey}
}

func (c *AMQPChannel) Name() string { return "amqp" }

func (c *AMQPChannel) Send(_ context.Context, message string) error {
	return c.publisher.Publish(c.routingKey, notificationPayload{
		Message: message,
		SentAt:  time.Now().UTC(),
	})
}
