// ============================================================================
// Walrus Application - Console runtime driver
// ============================================================================
//
// Package: internal/app
// File: app.go
// Purpose: Composes the shared worker pool, the event loop, the message
// broker and the layer tree into one console process with a master update
// loop.
//
// Master loop:
//   Run computes a float-seconds timestep from a monotonic stopwatch, ticks
//   the whole layer tree (parallel roots, barrier per frame), then paces the
//   next pass through a token-bucket rate limiter when a tick rate limit is
//   configured, or yields the processor when unlimited. The loop exits when
//   Close is called or the context is cancelled.
//
// Shutdown order:
//   Layers detach first, then the event loop stops (pending timers are
//   discarded), then the broker stops, and finally the pool drains and
//   joins. Work already handed to the pool at that point still completes.
//
// ============================================================================

package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/darthgelum/Walrus/internal/eventloop"
	"github.com/darthgelum/Walrus/internal/layertree"
	"github.com/darthgelum/Walrus/internal/metrics"
	"github.com/darthgelum/Walrus/internal/pubsub"
	"github.com/darthgelum/Walrus/internal/scheduler"
	"github.com/darthgelum/Walrus/pkg/layer"
	"github.com/darthgelum/Walrus/pkg/stopwatch"
)

var log = slog.Default()

// Application owns the runtime subsystems and the master update loop.
type Application struct {
	spec      Specification
	collector *metrics.Collector

	pool   *scheduler.Pool
	loop   *eventloop.Loop
	broker *pubsub.Broker
	tree   *layertree.Tree

	running atomic.Bool
	clock   *stopwatch.Stopwatch
	limiter *rate.Limiter
}

// New assembles an application from spec. collector may be nil.
func New(spec Specification, collector *metrics.Collector) *Application {
	pool := scheduler.NewPool(scheduler.Config{
		Workers:   spec.WorkerCount,
		Idle:      spec.Idle,
		Collector: collector,
	})

	a := &Application{
		spec:      spec,
		collector: collector,
		pool:      pool,
		loop:      eventloop.New(pool, collector),
		tree:      layertree.New(pool, collector),
		clock:     stopwatch.New(),
	}
	if spec.EnablePubSub {
		a.broker = pubsub.NewBroker(pool, collector)
	}
	if spec.LimitTickRate && spec.TargetTickRate > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(spec.TargetTickRate), 1)
	}
	return a
}

// ============================================================================
// Lifecycle
// ============================================================================

// Run starts every subsystem, attaches the layers, and drives the update
// loop until Close is called or ctx is cancelled. It returns after a full
// shutdown, so the caller owns the process lifetime.
func (a *Application) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return fmt.Errorf("app: %q is already running", a.spec.Name)
	}

	if err := a.pool.Start(); err != nil {
		a.running.Store(false)
		return fmt.Errorf("app: starting worker pool: %w", err)
	}
	a.loop.Start()
	if a.broker != nil {
		a.broker.Start()
	}

	log.Info("application starting",
		"name", a.spec.Name,
		"workers", a.pool.GetWorkerCount(),
		"idle", a.spec.Idle.String(),
		"target_tick_rate", a.spec.TargetTickRate,
		"tick_rate_limited", a.limiter != nil,
		"pubsub", a.broker != nil)

	// Layers attach after the subsystems are live, so OnAttach may already
	// register timers and subscriptions.
	a.tree.OnAttachAll()

	a.clock.Restart()
	lastFrame := 0.0
	for a.running.Load() && ctx.Err() == nil {
		now := a.clock.Elapsed()
		timestep := now - lastFrame
		lastFrame = now

		a.tree.Tick(timestep)

		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				break
			}
		} else {
			// Unlimited mode still yields so the loop cannot monopolize a
			// processor the workers need.
			runtime.Gosched()
		}
	}
	a.running.Store(false)

	a.shutdown()
	return nil
}

// Close asks the update loop to exit. It is safe to call from any
// goroutine, including layer callbacks, and is a no-op on a stopped
// application.
func (a *Application) Close() {
	a.running.Store(false)
}

// IsRunning reports whether the update loop is active.
func (a *Application) IsRunning() bool {
	return a.running.Load()
}

// Time returns seconds elapsed since Run started the clock.
func (a *Application) Time() float64 {
	return a.clock.Elapsed()
}

func (a *Application) shutdown() {
	log.Info("application shutting down", "name", a.spec.Name)

	a.tree.OnDetachAll()
	a.loop.Stop()
	if a.broker != nil {
		a.broker.Stop()
	}
	a.pool.Stop()

	log.Info("application stopped", "name", a.spec.Name)
}

// ============================================================================
// Layer management
// ============================================================================

// PushLayer adds l as a named root of the layer tree and returns its node,
// so callers can hang children off it.
func (a *Application) PushLayer(l layer.Layer, name string) *layertree.Node {
	return a.tree.AddRoot(l, name)
}

// Tree exposes the layer tree for structured construction.
func (a *Application) Tree() *layertree.Tree {
	return a.tree
}

// ============================================================================
// Subsystem access and conveniences
// ============================================================================

// Pool returns the shared worker pool.
func (a *Application) Pool() *scheduler.Pool {
	return a.pool
}

// Loop returns the event loop.
func (a *Application) Loop() *eventloop.Loop {
	return a.loop
}

// Broker returns the message broker, or nil when pub/sub is disabled.
func (a *Application) Broker() *pubsub.Broker {
	return a.broker
}

// Specification returns a copy of the configuration the application was
// built from.
func (a *Application) Specification() Specification {
	return a.spec
}

// SetTimeout forwards to the event loop.
func (a *Application) SetTimeout(callback func(), delay time.Duration) eventloop.EventID {
	return a.loop.SetTimeout(callback, delay)
}

// SetInterval forwards to the event loop.
func (a *Application) SetInterval(callback func(), period time.Duration) eventloop.EventID {
	return a.loop.SetInterval(callback, period)
}

// SetImmediate forwards to the event loop.
func (a *Application) SetImmediate(callback func()) eventloop.EventID {
	return a.loop.SetImmediate(callback)
}

// ClearTimeout forwards to the event loop.
func (a *Application) ClearTimeout(id eventloop.EventID) {
	a.loop.ClearTimeout(id)
}

// ClearInterval forwards to the event loop.
func (a *Application) ClearInterval(id eventloop.EventID) {
	a.loop.ClearInterval(id)
}
