package pubsub

// ============================================================================
// Typed messages and type identity
// ============================================================================

import "reflect"

// Message carries one published value to a subscriber. It is constructed
// fresh for every delivery and copied into the handler invocation, so
// handlers can never observe each other's mutations.
type Message[T any] struct {
	Payload T
	Topic   string
}

// Handler consumes typed messages for one subscription.
type Handler[T any] func(Message[T])

// typeKey returns the runtime type identity used to route a payload type.
// Routing compares these tokens exactly: a publish of type U never reaches
// a handler registered for T != U, even on the same topic.
func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
