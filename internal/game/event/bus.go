package event

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Observer receives events. A returned error is logged and never stops
// delivery to the remaining observers.
type Observer interface {
	OnEvent(e Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event) error

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) error { return f(e) }

// Subscription identifies one registration on a Bus.
type Subscription uint64

type entry struct {
	id  Subscription
	obs Observer
}

// Bus delivers events to observers in subscription order.
//
// Publish snapshots the observer list under the bus lock and delivers
// outside it, so observers may subscribe and unsubscribe from OnEvent.
type Bus struct {
	logger *zap.Logger

	mu        sync.Mutex
	next      Subscription
	observers []entry
}

// NewBus creates an empty bus.
//
// Precondition: logger must be non-nil.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers obs. Nil observers are ignored and yield the zero
// Subscription.
func (b *Bus) Subscribe(obs Observer) Subscription {
	if obs == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.observers = append(b.observers, entry{id: b.next, obs: obs})
	return b.next
}

// Unsubscribe removes the registration sub.
//
// Postcondition: Returns false when sub was not registered.
func (b *Bus) Unsubscribe(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.observers {
		if e.id == sub {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered observers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

// Clear removes every observer.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = nil
}

// Publish delivers e to every observer registered at the time of the call.
// Nil events are ignored. Observer errors and panics are logged.
func (b *Bus) Publish(e Event) {
	if e == nil {
		return
	}
	b.mu.Lock()
	snapshot := make([]entry, len(b.observers))
	copy(snapshot, b.observers)
	b.mu.Unlock()

	for _, en := range snapshot {
		if err := b.deliver(en.obs, e); err != nil {
			b.logger.Warn("observer failed",
				zap.Uint64("subscription", uint64(en.id)),
				zap.String("event", string(e.Kind())),
				zap.Error(err),
			)
		}
	}
}

// PublishAll delivers events in order.
func (b *Bus) PublishAll(events []Event) {
	for _, e := range events {
		b.Publish(e)
	}
}

func (b *Bus) deliver(obs Observer, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return obs.OnEvent(e)
}
