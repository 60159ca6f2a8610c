// Package stream implements the event bus (component C5): one bounded
// queue per subscriber, fed from the round scheduler's single writer.
// A subscriber that falls behind is disconnected rather than allowed to
// apply backpressure to the round loop or grow without bound.
package stream

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/rouletteengine/core/internal/round"
)

// Subscriber is one open stream connection's delivery queue.
type Subscriber struct {
	id    string
	queue chan round.Event
	done  chan struct{}
	once  sync.Once
}

func newSubscriber(depth int) *Subscriber {
	return &Subscriber{
		id:    uuid.NewString(),
		queue: make(chan round.Event, depth),
		done:  make(chan struct{}),
	}
}

// Events is the channel a handler should range/select over to deliver
// events to its client.
func (s *Subscriber) Events() <-chan round.Event {
	return s.queue
}

// Done closes when the hub has disconnected this subscriber, either
// because its queue overflowed or Unsubscribe was called.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans events out to every live subscriber. It implements
// round.Publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	queueDepth  int
}

// NewHub creates a Hub whose subscribers each get a queue of the given
// depth.
func NewHub(queueDepth int) *Hub {
	if queueDepth <= 0 {
		queueDepth = 1
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		queueDepth:  queueDepth,
	}
}

// Subscribe registers a new subscriber and returns its handle. Callers
// must call Unsubscribe when done, typically via defer.
func (h *Hub) Subscribe() *Subscriber {
	sub := newSubscriber(h.queueDepth)
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its Done channel. Safe to
// call more than once or after the hub already disconnected it.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub.id)
	h.mu.Unlock()
	sub.close()
}

// Count reports the number of currently registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish delivers event to every subscriber's queue without blocking. A
// subscriber whose queue is full is dropped: its Done channel closes and a
// future read of Events() yields nothing more.
func (h *Hub) Publish(event round.Event) {
	h.mu.RLock()
	var overflowed []*Subscriber
	for _, sub := range h.subscribers {
		select {
		case sub.queue <- event:
		default:
			overflowed = append(overflowed, sub)
		}
	}
	h.mu.RUnlock()

	if len(overflowed) == 0 {
		return
	}

	h.mu.Lock()
	for _, sub := range overflowed {
		delete(h.subscribers, sub.id)
	}
	h.mu.Unlock()

	for _, sub := range overflowed {
		log.Printf("[STREAM] subscriber %s overflowed its queue, disconnecting", sub.id)
		sub.close()
	}
}

var _ round.Publisher = (*Hub)(nil)
