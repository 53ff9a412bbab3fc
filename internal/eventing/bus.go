package eventing

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"
)

// EventHandler reacts to one decoded domain event, such as a created
// settlement or an ingested earning.
type EventHandler func(ctx context.Context, event any) error

// Bus fans domain events out to the consumers registered for their type.
type Bus interface {
	Publish(ctx context.Context, event any) error
	Subscribe(eventType string, handler EventHandler)
}

var (
	// ErrNilEvent is returned when a nil event is published.
	ErrNilEvent = errors.New("eventing: nil event")
	// ErrInvalidEventType is returned when the event type cannot be determined.
	ErrInvalidEventType = errors.New("eventing: invalid event type")
)

// InMemoryBus delivers events synchronously inside the process. The outbox
// dispatcher is its only publisher in production, so a failing consumer
// leaves the outbox record to be retried or dead-lettered.
type InMemoryBus struct {
	mu        sync.RWMutex
	consumers map[string][]EventHandler
}

// NewInMemoryBus constructs an empty bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{consumers: make(map[string][]EventHandler)}
}

// Publish runs every consumer of the event's type, even after one fails, and
// returns all of their errors joined.
func (b *InMemoryBus) Publish(ctx context.Context, event any) error {
	eventType := EventType(event)
	switch {
	case event == nil:
		return ErrNilEvent
	case eventType == "":
		return ErrInvalidEventType
	}

	b.mu.RLock()
	consumers := slices.Clone(b.consumers[eventType])
	b.mu.RUnlock()

	var errs []error
	for _, consume := range consumers {
		if err := consume(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe adds a consumer for eventType. Empty types and nil handlers are
// ignored.
func (b *InMemoryBus) Subscribe(eventType string, handler EventHandler) {
	if eventType == "" || handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers[eventType] = append(b.consumers[eventType], handler)
}

// EventType names an event by its Go type, e.g. "application.SettlementCreated".
// Pointers are named after the value they point to.
func EventType(event any) string {
	if event == nil {
		return ""
	}
	return typeName(reflect.TypeOf(event))
}

// EventTypeOf names the event type T the same way EventType names a value.
func EventTypeOf[T any]() string {
	return typeName(reflect.TypeOf((*T)(nil)).Elem())
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
