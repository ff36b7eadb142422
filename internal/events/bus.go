package events

import (
	"context"
	"sync"
	"time"
)

// Listener receives published events. It runs in the publisher's goroutine.
type Listener func(ctx context.Context, ev Event)

// Logger is the subset of logging used by the bus.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Bus is a synchronous, in-process publish/subscribe channel.
// The zero value is not usable; construct with NewBus.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Kind][]Listener
	logger    Logger
}

// NewBus creates an empty bus. A nil logger discards listener panics silently.
func NewBus(logger Logger) *Bus {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bus{
		listeners: make(map[Kind][]Listener),
		logger:    logger,
	}
}

// Subscribe registers l for events of kind. Subscribing to AnyKind receives
// every event. There is no unsubscribe.
func (b *Bus) Subscribe(kind Kind, l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	b.listeners[kind] = append(b.listeners[kind], l)
	b.mu.Unlock()
}

// Publish delivers ev to every listener of ev.Kind, then to every AnyKind
// listener, and returns after the last one finishes. A zero Timestamp is set
// to the current UTC time before delivery.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	for _, l := range b.snapshot(ev.Kind) {
		b.deliver(ctx, l, ev)
	}
}

// ListenerCount returns how many listeners are registered for kind.
func (b *Bus) ListenerCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[kind])
}

// snapshot copies the delivery list so listeners run without the lock held.
func (b *Bus) snapshot(kind Kind) []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()

	specific := b.listeners[kind]
	var generic []Listener
	if kind != AnyKind {
		generic = b.listeners[AnyKind]
	}

	out := make([]Listener, 0, len(specific)+len(generic))
	out = append(out, specific...)
	out = append(out, generic...)
	return out
}

func (b *Bus) deliver(ctx context.Context, l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panic recovered",
				"kind", string(ev.Kind),
				"user_id", ev.UserID,
				"panic", r,
			)
		}
	}()
	l(ctx, ev)
}
