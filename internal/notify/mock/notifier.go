// Package mock provides a mock notify.Notifier for testing.
package mock

import (
	"context"
	"sync"

	"preservia.dev/silo-core/internal/notify"
)

// Send records the arguments to a Send call.
type Send struct {
	Ctx    context.Context
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// Notifier is a mock implementation of notify.Notifier. It tracks calls and
// allows configuring the returned error.
type Notifier struct {
	mu sync.Mutex

	// SendError is returned by Send.
	SendError error
	// SendCalls tracks all calls to Send with their arguments.
	SendCalls []Send
}

// NewNotifier creates a Notifier with default behavior (no errors).
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Send implements notify.Notifier.
func (n *Notifier) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.SendCalls = append(n.SendCalls, Send{
		Ctx:    ctx,
		Tokens: tokens,
		Title:  title,
		Body:   body,
		Data:   data,
	})
	return n.SendError
}

// Calls returns a snapshot of the recorded Send calls.
func (n *Notifier) Calls() []Send {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Send, len(n.SendCalls))
	copy(out, n.SendCalls)
	return out
}

// Ensure Notifier implements notify.Notifier.
var _ notify.Notifier = (*Notifier)(nil)
