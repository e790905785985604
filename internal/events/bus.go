// Package events fans orchestrator activity out to interested listeners such
// as the SSE endpoint and the CLI renderer.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	// Any subscribes to every event type.
	Any EventType = "*"

	// Orchestrator events
	EventStage EventType = "stage"
	EventTurn  EventType = "turn"

	// Leave form events
	EventFormChanged    EventType = "form_changed"
	EventLeaveSubmitted EventType = "leave_submitted"
)

// Event represents a generic event
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Payload   any       `json:"payload"`
}

// New stamps an event with an ID and the current time.
func New(eventType EventType, source string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Payload:   payload,
	}
}

// Handler is the event handler function
type Handler func(ctx context.Context, evt Event) error

// Bus is the event bus interface
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(eventType EventType, handler Handler) string
	Unsubscribe(subscriptionID string)
	Replay(ctx context.Context, from time.Time, to time.Time, handler Handler) error
}

// InMemoryBus delivers events synchronously, in publish order, and keeps a
// bounded history for replay.
type InMemoryBus struct {
	mu         sync.RWMutex
	handlers   map[EventType]map[string]Handler
	history    []Event
	maxHistory int
}

// NewInMemoryBus creates a new in-memory event bus
func NewInMemoryBus(maxHistory int) *InMemoryBus {
	if maxHistory <= 0 {
		maxHistory = 256
	}
	return &InMemoryBus{
		handlers:   make(map[EventType]map[string]Handler),
		history:    make([]Event, 0),
		maxHistory: maxHistory,
	}
}

// Publish records evt and hands it to every matching subscriber. All
// subscribers run even if one fails; the first error is returned.
func (b *InMemoryBus) Publish(ctx context.Context, evt Event) error {
	b.mu.Lock()
	b.history = append(b.history, evt)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
	handlers := make([]Handler, 0, len(b.handlers[evt.Type])+len(b.handlers[Any]))
	for _, h := range b.handlers[evt.Type] {
		handlers = append(handlers, h)
	}
	if evt.Type != Any {
		for _, h := range b.handlers[Any] {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	var first error
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Subscribe subscribes to an event type
func (b *InMemoryBus) Subscribe(eventType EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}

	id := uuid.NewString()
	b.handlers[eventType][id] = handler
	return id
}

// Unsubscribe removes a subscription
func (b *InMemoryBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, handlers := range b.handlers {
		delete(handlers, subscriptionID)
	}
}

// Replay feeds handler the retained events stamped within [from, to].
// Other subscribers are not re-notified.
func (b *InMemoryBus) Replay(ctx context.Context, from, to time.Time, handler Handler) error {
	for _, evt := range b.History() {
		if evt.Timestamp.Before(from) || evt.Timestamp.After(to) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// History returns a copy of the retained events, oldest first.
func (b *InMemoryBus) History() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}
