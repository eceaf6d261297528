package bus

import (
	"strings"
	"sync"
)

// Bus fans out daemon events to in-process subscribers. Subscribers pick
// a kind prefix ("search.", "platform.", "" for everything) and receive
// matching events on a buffered channel.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscriber
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]subscriber)}
}

// Subscribe registers a listener for events whose Kind starts with prefix.
// The returned function removes the subscription; the channel is never
// closed, so readers should select on it together with their own done
// signal.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscriber{prefix: prefix, ch: ch}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
	return ch, unsub
}

// Publish delivers evt to every matching subscriber. Delivery is
// non-blocking: a subscriber whose buffer is full misses the event rather
// than stalling the publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}
