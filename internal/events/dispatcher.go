package events

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// Transport delivers a notification event to its recipient. A returned error
// means the event was not delivered.
type Transport interface {
	Send(ctx context.Context, event Event) error
}

// EventHandler observes delivered events.
type EventHandler func(context.Context, Event) error

// MemoryTransport is a synchronous in-process transport. Handlers subscribed
// per kind run on every delivery; the first handler error fails the send.
type MemoryTransport struct {
	mu        sync.RWMutex
	listeners map[domain.NotificationKind][]EventHandler
	delivered []Event
	failWith  error
}

// NewMemoryTransport creates a transport instance.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		listeners: make(map[domain.NotificationKind][]EventHandler),
	}
}

// Send records the event and invokes handlers for its kind.
func (t *MemoryTransport) Send(ctx context.Context, event Event) error {
	t.mu.RLock()
	failWith := t.failWith
	handlers := append([]EventHandler{}, t.listeners[event.Kind]...)
	t.mu.RUnlock()

	if failWith != nil {
		return failWith
	}
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}

	t.mu.Lock()
	t.delivered = append(t.delivered, event)
	t.mu.Unlock()
	return nil
}

// Subscribe registers a handler for the given kind.
func (t *MemoryTransport) Subscribe(kind domain.NotificationKind, handler EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners[kind] = append(t.listeners[kind], handler)
}

// FailWith makes every subsequent send fail with err. A nil err restores delivery.
func (t *MemoryTransport) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failWith = err
}

// Delivered returns a copy of every successfully sent event.
func (t *MemoryTransport) Delivered() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Event(nil), t.delivered...)
}

// ErrTransportUnavailable is used when no transport has been configured.
var ErrTransportUnavailable = errors.New("notification transport unavailable")
