package realtime

import (
	"log/slog"
	"sync"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

// subscription represents a single subscriber channel with its filter.
type subscription struct {
	ch     chan *core.Event
	filter func(*core.Event) bool
	once   sync.Once
}

// Broker implements core.EventPublisher and core.EventSubscriber using
// in-memory fan-out. The gateway feeds it from the backend channel and
// relays it to browser sockets.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
}

// NewBroker creates a new in-memory Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*subscription]struct{})}
}

// Publish delivers event to all matching subscribers. Slow subscribers
// lose events rather than blocking the channel.
func (b *Broker) Publish(event *core.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.filter == nil || sub.filter(event) {
			select {
			case sub.ch <- event:
			default:
				slog.Warn("dropping event, subscriber channel full", "event", event.Name)
			}
		}
	}
	return nil
}

// SubscribeSimulation subscribes to events carrying the given simulation id.
func (b *Broker) SubscribeSimulation(id int) (<-chan *core.Event, func(), error) {
	return b.subscribe(func(e *core.Event) bool {
		got, ok := e.SimulationID()
		return ok && got == id
	})
}

// SubscribeAll subscribes to all events.
func (b *Broker) SubscribeAll() (<-chan *core.Event, func(), error) {
	return b.subscribe(nil)
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) subscribe(filter func(*core.Event) bool) (<-chan *core.Event, func(), error) {
	sub := &subscription{ch: make(chan *core.Event, 64), filter: filter}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}, nil
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
	}

	return sub.ch, unsubscribe, nil
}

// Close shuts down the broker and closes all subscriber channels.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
	}
	b.subs = make(map[*subscription]struct{})
	return nil
}

var (
	_ core.EventPublisher  = (*Broker)(nil)
	_ core.EventSubscriber = (*Broker)(nil)
)
