// Package notify forwards push notifications to farmers' registered devices.
// Delivery is best effort: failures are logged by callers and never affect
// the alert or prediction that triggered the notification.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Notifier attempts best-effort delivery of a push notification to the given
// device tokens. Implementations must treat an empty token set as a no-op.
type Notifier interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// Job is the wire format for one notification handed to the delivery worker.
type Job struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// pusher is the subset of the MQ client the queue notifier needs.
type pusher interface {
	UnsafePush(ctx context.Context, data []byte) error
}

// pushTimeout bounds a single enqueue so a broker outage cannot stall the
// caller.
const pushTimeout = 2 * time.Second

// QueueNotifier enqueues notification jobs on RabbitMQ for the external
// delivery worker that holds the FCM credentials.
type QueueNotifier struct {
	client pusher
	logger *slog.Logger
}

// NewQueueNotifier creates a notifier over the given MQ client.
func NewQueueNotifier(client pusher, logger *slog.Logger) *QueueNotifier {
	return &QueueNotifier{
		client: client,
		logger: logger,
	}
}

// Send implements Notifier.
func (n *QueueNotifier) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	clean := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil
	}

	payload, err := json.Marshal(Job{
		Tokens: clean,
		Title:  title,
		Body:   body,
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	if err := n.client.UnsafePush(ctx, payload); err != nil {
		return fmt.Errorf("failed to enqueue notification job: %w", err)
	}

	n.logger.Debug("notification job enqueued",
		"title", title,
		"token_count", len(clean),
	)
	return nil
}

// NoopNotifier drops every notification. Used when push delivery is disabled.
type NoopNotifier struct{}

// Send implements Notifier.
func (NoopNotifier) Send(context.Context, []string, string, string, map[string]string) error {
	return nil
}

var (
	_ Notifier = (*QueueNotifier)(nil)
	_ Notifier = NoopNotifier{}
)
