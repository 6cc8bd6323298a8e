// Package eventbus is an in-memory publish/subscribe bus used to fan store
// events out to the audit log and to /device/events watchers.
//
// Topics are dot separated. A subscription pattern may use "*" for a single
// component, or be "*" alone to receive everything.
package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Event is one published message.
type Event struct {
	Topic string
	Data  any
}

// Subscriber is a buffered delivery channel for one subscription.
type Subscriber struct {
	ID      string
	Pattern string
	Channel chan Event
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	closed  bool
	dropped uint64
	total   *atomic.Uint64
}

// SafeSend delivers event without blocking. It returns false if the
// subscriber is closed or its buffer is full.
func (s *Subscriber) SafeSend(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.Channel <- event:
		return true
	default:
		s.dropped++
		if s.total != nil {
			s.total.Add(1)
		}
		return false
	}
}

// Dropped returns how many events could not be delivered.
func (s *Subscriber) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close cancels the subscription and closes its channel.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.cancel()
		close(s.Channel)
	}
}

// EventBus routes published events to matching subscribers.
type EventBus struct {
	sync.RWMutex
	subscribers map[string]map[string]*Subscriber // pattern -> id -> subscriber
	counter     uint64
	dropped     atomic.Uint64
}

func New() *EventBus {
	return &EventBus{
		subscribers: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe registers interest in pattern. Events arrive on the returned
// Subscriber's Channel; the function ends the subscription.
func (bus *EventBus) Subscribe(pattern string, bufferSize int) (*Subscriber, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscriber{
		ID:      fmt.Sprintf("sub-%d", atomic.AddUint64(&bus.counter, 1)),
		Pattern: pattern,
		Channel: make(chan Event, bufferSize),
		ctx:     ctx,
		cancel:  cancel,
		total:   &bus.dropped,
	}

	bus.Lock()
	defer bus.Unlock()
	if _, ok := bus.subscribers[pattern]; !ok {
		bus.subscribers[pattern] = make(map[string]*Subscriber)
	}
	bus.subscribers[pattern][sub.ID] = sub
	return sub, func() { bus.unsubscribe(sub) }
}

// Dropped returns how many deliveries failed across all subscribers since
// the bus was created.
func (bus *EventBus) Dropped() uint64 {
	return bus.dropped.Load()
}

func (bus *EventBus) unsubscribe(sub *Subscriber) {
	bus.Lock()
	defer bus.Unlock()

	subs, ok := bus.subscribers[sub.Pattern]
	if !ok {
		return
	}
	if s, ok := subs[sub.ID]; ok {
		s.Close()
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(bus.subscribers, sub.Pattern)
		}
	}
}

// TryPublish delivers to every matching subscriber without blocking; slow
// subscribers lose the event.
func (bus *EventBus) TryPublish(topic string, data any) {
	event := Event{Topic: topic, Data: data}

	bus.RLock()
	defer bus.RUnlock()
	for pattern, subs := range bus.subscribers {
		if !matchTopic(pattern, topic) {
			continue
		}
		for _, sub := range subs {
			select {
			case <-sub.ctx.Done():
				continue
			default:
				sub.SafeSend(event)
			}
		}
	}
}

// Shutdown closes every subscription.
func (bus *EventBus) Shutdown() {
	bus.Lock()
	defer bus.Unlock()

	for _, subs := range bus.subscribers {
		for _, sub := range subs {
			sub.Close()
		}
	}
	bus.subscribers = make(map[string]map[string]*Subscriber)
}

func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	patternParts := strings.Split(pattern, ".")
	topicParts := strings.Split(topic, ".")
	if len(patternParts) != len(topicParts) {
		return false
	}
	for i := range patternParts {
		if patternParts[i] != "*" && patternParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}
