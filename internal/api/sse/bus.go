// Package sse streams server events to HTTP clients.
package sse

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber buffer used when none is given.
const DefaultBufferSize = 100

// Subscriber is one subscription to an EventBus.
type Subscriber[T any] struct {
	// ID is the unique identifier for this subscriber.
	ID string
	// Filter is an optional function that filters events.
	// If nil, all events are accepted.
	Filter func(T) bool
	// Events is the channel where events are delivered.
	Events chan T
}

// EventBus fans events out to subscribers.
type EventBus[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber[T]
	bufferSize  int
}

// NewEventBus creates a new event bus.
// bufferSize specifies the buffer size for subscriber channels.
func NewEventBus[T any](bufferSize int) *EventBus[T] {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &EventBus[T]{
		subscribers: make(map[string]*Subscriber[T]),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a new subscription with an optional filter.
func (eb *EventBus[T]) Subscribe(filter func(T) bool) *Subscriber[T] {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub := &Subscriber[T]{
		ID:     uuid.New().String(),
		Filter: filter,
		Events: make(chan T, eb.bufferSize),
	}
	eb.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription by ID and closes its Events channel.
func (eb *EventBus[T]) Unsubscribe(subscriberID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if sub, ok := eb.subscribers[subscriberID]; ok {
		close(sub.Events)
		delete(eb.subscribers, subscriberID)
	}
}

// Publish sends an event to all matching subscribers.
// Non-blocking: if a subscriber's buffer is full, the event is dropped for that subscriber.
func (eb *EventBus[T]) Publish(event T) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, sub := range eb.subscribers {
		if sub.Filter != nil && !sub.Filter(event) {
			continue
		}

		select {
		case sub.Events <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (eb *EventBus[T]) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}
