package stream

import (
	"sync"
	"sync/atomic"
)

// Subscriber is one consumer of the scan event feed — typically an
// operations dashboard tailing a tenant topic, or a relay forwarding
// the firehose. Delivery is credit-gated: the consumer grants credits
// as it drains its channel, and a subscriber with no credits is
// skipped rather than blocked on. Scan passes never wait on a slow
// reader.
type Subscriber struct {
	id string

	// ch carries delivered events; sends are non-blocking.
	ch chan *Event

	// credits is the remaining delivery allowance. Zero means the
	// consumer has fallen behind and deliveries are dropped.
	credits atomic.Int64

	mu     sync.RWMutex
	topics map[string]struct{}

	// filter, when set, narrows delivery beyond topic membership
	// (e.g. only scan.failed events for an alerting relay).
	filter func(*Event) bool

	closed atomic.Bool
}

// NewSubscriber creates a subscriber with the given channel buffer and
// initial credit allowance.
func NewSubscriber(id string, bufferSize int, initialCredits int64) *Subscriber {
	s := &Subscriber{
		id:     id,
		ch:     make(chan *Event, bufferSize),
		topics: make(map[string]struct{}),
	}
	s.credits.Store(initialCredits)
	return s
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the channel scan events are delivered on.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// AddCredits grants further deliveries. Consumers call this as they
// drain C.
func (s *Subscriber) AddCredits(n int64) {
	s.credits.Add(n)
}

// Credits returns the remaining delivery allowance.
func (s *Subscriber) Credits() int64 {
	return s.credits.Load()
}

// SetFilter narrows delivery to events the predicate accepts. Set it
// before subscribing; it is not synchronized against in-flight sends.
func (s *Subscriber) SetFilter(fn func(*Event) bool) {
	s.filter = fn
}

// Topics returns the topics this subscriber currently receives.
func (s *Subscriber) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

func (s *Subscriber) addTopic(topic string) {
	s.mu.Lock()
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscriber) removeTopic(topic string) {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
}

// takeCredit consumes one delivery credit, reporting false when the
// allowance is exhausted.
func (s *Subscriber) takeCredit() bool {
	for {
		current := s.credits.Load()
		if current <= 0 {
			return false
		}
		if s.credits.CompareAndSwap(current, current-1) {
			return true
		}
	}
}

// send delivers evt if the subscriber is open, the filter accepts it,
// a credit is available, and the buffer has room. Any miss drops the
// event; the broker counts drops, it never retries them.
func (s *Subscriber) send(evt *Event) bool {
	if s.closed.Load() {
		return false
	}
	if s.filter != nil && !s.filter(evt) {
		return false
	}
	if !s.takeCredit() {
		return false
	}

	select {
	case s.ch <- evt:
		return true
	default:
		// Buffer full; the credit goes back so draining the channel
		// is enough to resume delivery.
		s.credits.Add(1)
		return false
	}
}

// Close closes the delivery channel. Safe to call more than once.
func (s *Subscriber) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}
