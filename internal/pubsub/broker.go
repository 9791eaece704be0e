// ============================================================================
// Walrus PubSub - In-memory type-routed message broker
// ============================================================================
//
// Package: internal/pubsub
// File: broker.go
// Purpose: Maps (topic, payload type) pairs to ordered subscriber lists and
// fans published values out through the shared worker pool.
//
// Routing:
//   The broker is type-erased internally: handlers are stored behind a
//   reflect.Type key and an erased delivery closure, so one topic string can
//   carry unrelated payload types without collision. The type check happens
//   before the stored handler is invoked, never via an unchecked cast.
//
// Delivery:
//   Publish submits one pool task per matching subscriber, so delivery is
//   concurrent across subscribers and unordered relative to other
//   publishes. A handler that panics is caught at the pool boundary and
//   cannot affect the other subscribers of the same publish.
//
// Lifecycle:
//   Publish before Start or after Stop is a safe no-op: the message is
//   dropped, not queued. Subscriptions may be registered at any time.
//
// Concurrency:
//   The subscriber table is guarded by a RWMutex around every structural
//   mutation and lookup; handler execution happens outside the lock, so a
//   slow handler never blocks registration.
//
// ============================================================================

package pubsub

import (
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/darthgelum/Walrus/internal/metrics"
	"github.com/darthgelum/Walrus/internal/scheduler"
)

var log = slog.Default()

// taskOrigin tags pool submissions for panic reports.
const taskOrigin = "pubsub"

// subscription is one type-erased handler entry. deliver re-creates the
// typed message and invokes the registered handler.
type subscription struct {
	deliver func(payload any, topic string)
}

// Broker is the in-memory message broker. All methods are safe for
// concurrent use.
type Broker struct {
	pool      *scheduler.Pool
	collector *metrics.Collector

	mu sync.RWMutex
	// topic -> payload type -> subscribers in insertion order
	subscribers map[string]map[reflect.Type][]*subscription

	running atomic.Bool

	published atomic.Uint64
	processed atomic.Uint64
}

// NewBroker creates a stopped broker backed by pool. collector may be nil.
func NewBroker(pool *scheduler.Pool, collector *metrics.Collector) *Broker {
	return &Broker{
		pool:        pool,
		collector:   collector,
		subscribers: make(map[string]map[reflect.Type][]*subscription),
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

// Start enables message processing. Starting a running broker is a no-op.
func (b *Broker) Start() {
	b.running.Store(true)
}

// Stop disables message processing. Deliveries already handed to the pool
// still complete; subscriptions stay registered. Stopping a stopped broker
// is a no-op.
func (b *Broker) Stop() {
	b.running.Store(false)
}

// IsRunning reports whether Publish currently delivers messages.
func (b *Broker) IsRunning() bool {
	return b.running.Load()
}

// ============================================================================
// Subscribe / Publish / Unsubscribe
// ============================================================================

// Subscribe registers handler for values of type T published on topic.
// Every subscription to the same (topic, T) pair is retained and invoked.
func Subscribe[T any](b *Broker, topic string, handler Handler[T]) {
	if handler == nil {
		return
	}
	sub := &subscription{
		deliver: func(payload any, topic string) {
			value, ok := payload.(T)
			if !ok {
				// Routing guarantees the type; a mismatch here would be a
				// broker bug, not a caller error.
				return
			}
			handler(Message[T]{Payload: value, Topic: topic})
		},
	}

	key := typeKey[T]()
	b.mu.Lock()
	byType, ok := b.subscribers[topic]
	if !ok {
		byType = make(map[reflect.Type][]*subscription)
		b.subscribers[topic] = byType
	}
	byType[key] = append(byType[key], sub)
	b.updateSubscriberGaugeLocked()
	b.mu.Unlock()
}

// Publish delivers value to every handler subscribed to (topic, T). Each
// matching subscriber receives its own pool task with a freshly constructed
// message. Publishing while the broker is stopped drops the value silently.
func Publish[T any](b *Broker, topic string, value T) {
	if !b.running.Load() {
		return
	}

	key := typeKey[T]()
	b.mu.RLock()
	var targets []*subscription
	if byType, ok := b.subscribers[topic]; ok {
		if subs, ok := byType[key]; ok && len(subs) > 0 {
			targets = make([]*subscription, len(subs))
			copy(targets, subs)
		}
	}
	b.mu.RUnlock()

	b.published.Add(1)
	if b.collector != nil {
		b.collector.RecordPublish()
	}
	if len(targets) == 0 {
		return
	}

	for _, sub := range targets {
		sub := sub
		err := b.pool.Submit(scheduler.Task{
			Origin: taskOrigin,
			Run: func() {
				sub.deliver(value, topic)
				b.processed.Add(1)
				if b.collector != nil {
					b.collector.RecordDelivery()
				}
			},
		})
		if err != nil {
			log.Error("message delivery submission failed",
				"topic", topic,
				"error", err)
		}
	}
}

// Unsubscribe removes the handlers registered for (topic, T) only; other
// payload types on the topic are unaffected. Unsubscribing a pair with no
// subscribers is a no-op.
func Unsubscribe[T any](b *Broker, topic string) {
	key := typeKey[T]()
	b.mu.Lock()
	if byType, ok := b.subscribers[topic]; ok {
		delete(byType, key)
		if len(byType) == 0 {
			delete(b.subscribers, topic)
		}
	}
	b.updateSubscriberGaugeLocked()
	b.mu.Unlock()
}

// Unsubscribe clears every handler on topic regardless of payload type.
// Unknown topics are a no-op.
func (b *Broker) Unsubscribe(topic string) {
	b.mu.Lock()
	delete(b.subscribers, topic)
	b.updateSubscriberGaugeLocked()
	b.mu.Unlock()
}

// ============================================================================
// Statistics
// ============================================================================

// MessagesPublished returns the number of publishes accepted while running.
func (b *Broker) MessagesPublished() uint64 {
	return b.published.Load()
}

// MessagesProcessed returns the number of handler invocations completed.
func (b *Broker) MessagesProcessed() uint64 {
	return b.processed.Load()
}

// TopicCount returns the number of topics with at least one subscription.
func (b *Broker) TopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// SubscriberCount returns the total number of subscriptions across all
// topics and types.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subscriberCountLocked()
}

// Topics returns the topics that currently have subscriptions, in no
// particular order.
func (b *Broker) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	topics := make([]string, 0, len(b.subscribers))
	for topic := range b.subscribers {
		topics = append(topics, topic)
	}
	return topics
}

func (b *Broker) subscriberCountLocked() int {
	count := 0
	for _, byType := range b.subscribers {
		for _, subs := range byType {
			count += len(subs)
		}
	}
	return count
}

func (b *Broker) updateSubscriberGaugeLocked() {
	if b.collector != nil {
		b.collector.SetSubscribers(b.subscriberCountLocked())
	}
}
