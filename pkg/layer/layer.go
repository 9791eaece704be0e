// Package layer defines the unit contract consumed by the layer tree and the
// application driver. User code implements Layer (usually by embedding Base)
// and receives three lifecycle hooks: OnAttach once before the first tick,
// OnUpdate once per tick, OnDetach once at shutdown.
package layer

// Layer is a single lifecycle unit hosted by the runtime.
//
// A Layer carries no concurrency logic of its own. The runtime may invoke
// OnUpdate of different layers concurrently, but never invokes the same
// layer's OnUpdate concurrently with itself within one tick.
type Layer interface {
	// OnAttach is called exactly once, before the first OnUpdate.
	OnAttach()

	// OnUpdate is called once per tick. ts is the time elapsed since the
	// previous tick, in seconds.
	OnUpdate(ts float64)

	// OnDetach is called exactly once, at shutdown.
	OnDetach()
}

// Base is a no-op Layer. Embed it to implement only the hooks you need.
type Base struct{}

// OnAttach implements Layer.
func (Base) OnAttach() {}

// OnUpdate implements Layer.
func (Base) OnUpdate(ts float64) {}

// OnDetach implements Layer.
func (Base) OnDetach() {}

// Func adapts a plain update function into a Layer. Attach and detach are
// no-ops.
type Func func(ts float64)

// OnAttach implements Layer.
func (Func) OnAttach() {}

// OnUpdate implements Layer.
func (f Func) OnUpdate(ts float64) { f(ts) }

// OnDetach implements Layer.
func (Func) OnDetach() {}
