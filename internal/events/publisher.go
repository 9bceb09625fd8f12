// Package events publishes typed real-time events to per-owner logical
// channels. The socket gateway consumes the queue and fans envelopes out to
// connected dashboard clients.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"preservia.dev/silo-core/pkg/mq"
)

// Event kinds emitted by the engines.
const (
	SensorUpdate     = "sensor_update"
	AlertTriggered   = "alert_triggered"
	PredictionUpdate = "prediction_update"
)

// Envelope is the wire format for one event: the logical channel it is
// addressed to, the event kind, and a kind-specific payload.
type Envelope struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Publisher delivers an event payload to the owner's channel.
type Publisher interface {
	Publish(ctx context.Context, ownerID uint, event string, payload any) error
}

// ChannelForOwner returns the logical channel name for a user. Dashboard
// sockets join the same room on connect.
func ChannelForOwner(ownerID uint) string {
	return fmt.Sprintf("farmer_%d", ownerID)
}

// pushTimeout bounds a single publish so a broker outage cannot stall an
// engine tick.
const pushTimeout = 2 * time.Second

// AMQPPublisher publishes envelopes as JSON onto a RabbitMQ queue.
type AMQPPublisher struct {
	client mq.ClientInterface
	logger *slog.Logger
}

// NewAMQPPublisher creates a publisher over the given MQ client.
func NewAMQPPublisher(client mq.ClientInterface, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		client: client,
		logger: logger,
	}
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, ownerID uint, event string, payload any) error {
	envelope := Envelope{
		Channel: ChannelForOwner(ownerID),
		Event:   event,
		Payload: payload,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}

	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	if err := p.client.UnsafePush(ctx, body); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event, err)
	}

	p.logger.Debug("event published",
		"event", event,
		"channel", envelope.Channel,
	)
	return nil
}

// Ensure AMQPPublisher implements Publisher.
var _ Publisher = (*AMQPPublisher)(nil)
