// Package mock provides a mock events.Publisher for testing.
package mock

import (
	"context"
	"sync"

	"preservia.dev/silo-core/internal/events"
)

// Publish records the arguments to a Publish call.
type Publish struct {
	Ctx     context.Context
	OwnerID uint
	Event   string
	Payload any
}

// Publisher is a mock implementation of events.Publisher. It tracks calls
// and allows configuring the returned error.
type Publisher struct {
	mu sync.Mutex

	// PublishError is returned by Publish.
	PublishError error
	// PublishCalls tracks all calls to Publish with their arguments.
	PublishCalls []Publish
}

// NewPublisher creates a Publisher with default behavior (no errors).
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, ownerID uint, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.PublishCalls = append(p.PublishCalls, Publish{
		Ctx:     ctx,
		OwnerID: ownerID,
		Event:   event,
		Payload: payload,
	})
	return p.PublishError
}

// Calls returns a snapshot of the recorded Publish calls.
func (p *Publisher) Calls() []Publish {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Publish, len(p.PublishCalls))
	copy(out, p.PublishCalls)
	return out
}

// CallsFor returns the recorded calls with the given event kind.
func (p *Publisher) CallsFor(event string) []Publish {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Publish
	for _, c := range p.PublishCalls {
		if c.Event == event {
			out = append(out, c)
		}
	}
	return out
}

// Ensure Publisher implements events.Publisher.
var _ events.Publisher = (*Publisher)(nil)
