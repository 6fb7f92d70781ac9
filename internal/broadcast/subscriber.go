package broadcast

import (
	"sync"
)

// Subscriber is anything that can receive a multicast JSON message.
// internal/httpapi implements this over a gorilla/websocket connection;
// tests use an in-memory fake. Send must not block indefinitely — slow
// subscribers are the transport's problem to evict (spec.md §4.5).
type Subscriber interface {
	ID() string
	Send(msg []byte) error
}

// subscriberSet supports safe concurrent iteration (snapshot on iterate)
// with single-writer add/remove, per spec.md §5.
type subscriberSet struct {
	mu   sync.Mutex
	subs map[string]Subscriber
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[string]Subscriber)}
}

func (s *subscriberSet) add(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID()] = sub
}

func (s *subscriberSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// snapshot returns a point-in-time copy safe to iterate without holding
// the lock, so a slow Send never blocks add/remove.
func (s *subscriberSet) snapshot() []Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

func (s *subscriberSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// multicast sends msg to every current subscriber; a send error evicts
// the subscriber (the transport already closed it, per spec.md §4.5's
// backpressure policy).
func (s *subscriberSet) multicast(msg []byte, onEvict func(Subscriber)) {
	for _, sub := range s.snapshot() {
		if err := sub.Send(msg); err != nil {
			s.remove(sub.ID())
			if onEvict != nil {
				onEvict(sub)
			}
		}
	}
}
