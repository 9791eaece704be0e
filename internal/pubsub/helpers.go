package pubsub

// ============================================================================
// Publisher / Subscriber convenience wrappers
// ============================================================================

import "sync"

// Publisher publishes values of one type, optionally to a default topic.
type Publisher[T any] struct {
	broker       *Broker
	defaultTopic string
}

// NewPublisher creates a publisher bound to broker. defaultTopic may be
// empty, in which case every Publish call must name a topic.
func NewPublisher[T any](broker *Broker, defaultTopic string) *Publisher[T] {
	return &Publisher[T]{broker: broker, defaultTopic: defaultTopic}
}

// Publish sends value to the default topic.
func (p *Publisher[T]) Publish(value T) {
	Publish(p.broker, p.defaultTopic, value)
}

// PublishTo sends value to topic, overriding the default.
func (p *Publisher[T]) PublishTo(topic string, value T) {
	Publish(p.broker, topic, value)
}

// DefaultTopic returns the configured default topic.
func (p *Publisher[T]) DefaultTopic() string {
	return p.defaultTopic
}

// Subscriber tracks the subscriptions it registered so they can be torn
// down together with Close.
type Subscriber[T any] struct {
	broker *Broker

	mu     sync.Mutex
	topics []string
}

// NewSubscriber creates a subscriber bound to broker.
func NewSubscriber[T any](broker *Broker) *Subscriber[T] {
	return &Subscriber[T]{broker: broker}
}

// Subscribe registers handler on topic and remembers the subscription.
func (s *Subscriber[T]) Subscribe(topic string, handler Handler[T]) {
	Subscribe(s.broker, topic, handler)
	s.mu.Lock()
	s.topics = append(s.topics, topic)
	s.mu.Unlock()
}

// Unsubscribe removes this payload type's handlers from topic and forgets
// the tracked subscription.
func (s *Subscriber[T]) Unsubscribe(topic string) {
	Unsubscribe[T](s.broker, topic)
	s.mu.Lock()
	kept := s.topics[:0]
	for _, t := range s.topics {
		if t != topic {
			kept = append(kept, t)
		}
	}
	s.topics = kept
	s.mu.Unlock()
}

// Topics returns the topics this subscriber is currently tracking.
func (s *Subscriber[T]) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.topics))
	copy(out, s.topics)
	return out
}

// Close unsubscribes every tracked topic.
func (s *Subscriber[T]) Close() {
	s.mu.Lock()
	topics := s.topics
	s.topics = nil
	s.mu.Unlock()
	for _, t := range topics {
		Unsubscribe[T](s.broker, t)
	}
}
