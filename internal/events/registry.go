package events

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Topic names a notification stream.
type Topic string

const (
	TopicLog      Topic = "log"
	TopicConfig   Topic = "config"
	TopicGimbal   Topic = "gimbal"
	TopicMessages Topic = "messages"
	TopicFrame    Topic = "frame"
	TopicAuth     Topic = "auth"
)

// Topics lists every topic the client emits.
var Topics = []Topic{TopicLog, TopicConfig, TopicGimbal, TopicMessages, TopicFrame, TopicAuth}

// DefaultMaxSubscribers is the per-topic subscriber limit of NewRegistry.
const DefaultMaxSubscribers = 100

var (
	// ErrTooManySubscribers is returned when a topic is at its limit.
	ErrTooManySubscribers = errors.New("too many subscribers")

	// ErrClosed is returned by Subscribe after Close.
	ErrClosed = errors.New("registry closed")
)

// Handler receives the payload of one notification.
type Handler func(payload any)

type subscriber struct {
	id      uint64
	handler Handler
	active  atomic.Bool
}

// Registry maps topics to ordered subscriber lists.
type Registry struct {
	mu     sync.RWMutex
	max    int
	nextID uint64
	topics map[Topic][]*subscriber
	closed atomic.Bool
}

// NewRegistry creates a registry with DefaultMaxSubscribers per topic.
func NewRegistry() *Registry {
	return NewRegistryWithLimit(DefaultMaxSubscribers)
}

// NewRegistryWithLimit creates a registry with the given per-topic limit.
// A limit of zero or less means unbounded.
func NewRegistryWithLimit(max int) *Registry {
	if max < 0 {
		max = 0
	}
	return &Registry{
		max:    max,
		topics: make(map[Topic][]*subscriber),
	}
}

// Subscribe registers h on topic and returns a function that removes it.
// The returned function is safe to call more than once.
func (r *Registry) Subscribe(topic Topic, h Handler) (func(), error) {
	if h == nil {
		return nil, errors.New("nil handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return nil, ErrClosed
	}
	if r.max > 0 && len(r.topics[topic]) >= r.max {
		return nil, fmt.Errorf("%w: topic %q has %d", ErrTooManySubscribers, topic, r.max)
	}

	r.nextID++
	sub := &subscriber{id: r.nextID, handler: h}
	sub.active.Store(true)
	r.topics[topic] = append(r.topics[topic], sub)

	return func() { r.remove(topic, sub) }, nil
}

func (r *Registry) remove(topic Topic, sub *subscriber) {
	if !sub.active.CompareAndSwap(true, false) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.topics[topic]
	for i, s := range subs {
		if s.id == sub.id {
			r.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(r.topics[topic]) == 0 {
		delete(r.topics, topic)
	}
}

// Emit calls every handler subscribed to topic with payload and returns the
// number of handlers called.
func (r *Registry) Emit(topic Topic, payload any) int {
	if r.closed.Load() {
		return 0
	}

	r.mu.RLock()
	subs := r.topics[topic]
	r.mu.RUnlock()

	called := 0
	for _, sub := range subs {
		if r.closed.Load() {
			break
		}
		if !sub.active.Load() {
			continue
		}
		sub.handler(payload)
		called++
	}
	return called
}

// Count returns the number of subscribers on topic.
func (r *Registry) Count(topic Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// Close detaches every subscriber. It is idempotent.
func (r *Registry) Close() {
	if r.closed.Swap(true) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, subs := range r.topics {
		for _, sub := range subs {
			sub.active.Store(false)
		}
	}
	r.topics = make(map[Topic][]*subscriber)
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	return r.closed.Load()
}
