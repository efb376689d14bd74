package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// subscriberQueueSize bounds how many undelivered events a slow
// subscriber may accumulate before it starts losing events (spec.md
// §4.5: "a slow subscriber is dropped events after a bounded queue
// (1024 per subscriber) fills").
const subscriberQueueSize = 1024

// Subscriber is a single event sink. Ch is buffered at
// subscriberQueueSize; Dropped counts events lost to a full queue.
type Subscriber struct {
	id      int
	ch      chan Event
	dropped atomic.Uint64
}

// Events returns the channel events arrive on. It is closed when the
// Bus is closed.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Dropped reports how many events this subscriber has lost to
// backpressure since it subscribed.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Bus is the engine's typed, non-blocking publish point. Publishing
// never blocks the driver: a full subscriber queue drops the event for
// that subscriber only, never for others, and never blocks Publish.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*Subscriber
	nextID int
	closed bool
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*Subscriber)}
}

// Subscribe registers a new subscriber and returns it. Callers must
// drain Events() until it closes, or the subscriber leaks.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{id: b.nextID, ch: make(chan Event, subscriberQueueSize)}
	b.nextID++
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes and closes a subscriber.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
}

// Publish fans e out to every current subscriber. It never blocks: a
// subscriber whose queue is full has the event dropped for it and its
// Dropped() counter incremented.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Close closes every subscriber channel. No further Publish calls
// deliver anything (spec.md invariant 6: after stop(), no further
// events are published).
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Drain reads every currently-queued event off sub until ctx is done or
// the bus closes sub's channel. It is a convenience for tests and for
// simple synchronous subscribers that need ctx cancellation.
func Drain(ctx context.Context, sub *Subscriber, handle func(Event)) {
	for {
		select {
		case e, ok := <-sub.ch:
			if !ok {
				return
			}
			handle(e)
		case <-ctx.Done():
			return
		}
	}
}
