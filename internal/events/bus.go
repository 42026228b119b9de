package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Bus is a small fan-out publisher. Publishing never blocks the job that
// calls it: a subscriber that falls behind its buffer loses events rather
// than stalling the durable write path.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

const subscriberBuffer = 256

// Subscribe registers a listener. The returned cancel func must be called
// to release the subscription; the channel closes after cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with room in its buffer.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			zap.L().Debug("events: dropping event for slow subscriber", zap.String("kind", string(e.Kind)))
		}
	}
}
