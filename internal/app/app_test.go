package app

// ============================================================================
// Application Test File
// Purpose: Verify specification presets, subsystem wiring, the master update
// loop and graceful shutdown ordering
// ============================================================================

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darthgelum/Walrus/internal/pubsub"
	"github.com/darthgelum/Walrus/internal/scheduler"
	"github.com/darthgelum/Walrus/pkg/layer"
)

func testSpec() Specification {
	spec := DefaultSpecification()
	spec.Name = "test app"
	spec.TargetTickRate = 200
	spec.WorkerCount = 4
	return spec
}

// runApp drives a.Run on a goroutine and returns a done channel.
func runApp(t *testing.T, a *Application, ctx context.Context) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not shut down")
	}
}

// ============================================================================
// Specification Tests
// ============================================================================

// TestPresets tests that every preset produces a usable specification
func TestPresets(t *testing.T) {
	for name, build := range Presets {
		t.Run(name, func(t *testing.T) {
			spec := build()
			assert.NotEmpty(t, spec.Name)
			if spec.LimitTickRate {
				assert.Greater(t, spec.TargetTickRate, 0.0)
			}
		})
	}
}

// TestPresetValues spot-checks a few preset knobs
func TestPresetValues(t *testing.T) {
	assert.Equal(t, 144.0, HighPerformance().TargetTickRate)
	assert.Equal(t, scheduler.IdleYield, HighPerformance().Idle)

	assert.Equal(t, 2, PowerEfficient().WorkerCount)
	assert.Equal(t, scheduler.IdleSleep, PowerEfficient().Idle)

	assert.False(t, MaxThroughput().LimitTickRate)

	assert.Equal(t, 1.0, UltraLowPower().TargetTickRate)
	assert.Equal(t, scheduler.IdleSpin, UltraHighPerformance().Idle)
}

// ============================================================================
// Wiring Tests
// ============================================================================

// TestNewWiring tests subsystem construction from the specification
func TestNewWiring(t *testing.T) {
	a := New(testSpec(), nil)

	assert.NotNil(t, a.Pool())
	assert.NotNil(t, a.Loop())
	assert.NotNil(t, a.Tree())
	assert.Nil(t, a.Broker(), "pub/sub defaults to disabled")
	assert.Equal(t, 4, a.Pool().GetWorkerCount())
	assert.Equal(t, "test app", a.Specification().Name)
	assert.False(t, a.IsRunning())
}

// TestNewWithPubSub tests broker construction when enabled
func TestNewWithPubSub(t *testing.T) {
	spec := testSpec()
	spec.EnablePubSub = true
	a := New(spec, nil)
	assert.NotNil(t, a.Broker())
}

// ============================================================================
// Run Loop Tests
// ============================================================================

// TestRunTicksLayers tests that layers receive repeated updates with a
// positive timestep while the loop runs
func TestRunTicksLayers(t *testing.T) {
	a := New(testSpec(), nil)

	var ticks atomic.Int64
	var badTimestep atomic.Bool
	a.PushLayer(layer.Func(func(ts float64) {
		if ts < 0 {
			badTimestep.Store(true)
		}
		ticks.Add(1)
	}), "counter")

	done := runApp(t, a, context.Background())

	require.Eventually(t, func() bool {
		return ticks.Load() >= 5
	}, 3*time.Second, 5*time.Millisecond)
	assert.True(t, a.IsRunning())
	assert.Greater(t, a.Time(), 0.0)

	a.Close()
	waitDone(t, done)
	assert.False(t, a.IsRunning())
	assert.False(t, badTimestep.Load())
}

// TestRunAttachesAndDetaches tests lifecycle hook ordering around the loop
func TestRunAttachesAndDetaches(t *testing.T) {
	a := New(testSpec(), nil)

	var attached, detached atomic.Int64
	a.PushLayer(&hookLayer{
		onAttach: func() { attached.Add(1) },
		onDetach: func() { detached.Add(1) },
	}, "hooks")

	done := runApp(t, a, context.Background())
	require.Eventually(t, func() bool {
		return attached.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, detached.Load())

	a.Close()
	waitDone(t, done)
	assert.Equal(t, int64(1), attached.Load())
	assert.Equal(t, int64(1), detached.Load())
}

// TestRunContextCancel tests shutdown through context cancellation
func TestRunContextCancel(t *testing.T) {
	a := New(testSpec(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := runApp(t, a, ctx)
	require.Eventually(t, a.IsRunning, 2*time.Second, 5*time.Millisecond)

	cancel()
	waitDone(t, done)
	assert.False(t, a.IsRunning())
}

// TestRunTwiceFails tests that a running application rejects a second Run
func TestRunTwiceFails(t *testing.T) {
	a := New(testSpec(), nil)

	done := runApp(t, a, context.Background())
	require.Eventually(t, a.IsRunning, 2*time.Second, 5*time.Millisecond)

	err := a.Run(context.Background())
	assert.Error(t, err)

	a.Close()
	waitDone(t, done)
}

// TestTickRateLimit tests that the limiter paces the loop near the target
func TestTickRateLimit(t *testing.T) {
	spec := testSpec()
	spec.TargetTickRate = 50
	a := New(spec, nil)

	var ticks atomic.Int64
	a.PushLayer(layer.Func(func(float64) { ticks.Add(1) }), "counter")

	done := runApp(t, a, context.Background())
	time.Sleep(500 * time.Millisecond)
	a.Close()
	waitDone(t, done)

	// 50 Hz over 500ms is ~25 ticks; allow wide scheduling slack.
	n := ticks.Load()
	assert.Greater(t, n, int64(10))
	assert.Less(t, n, int64(45))
}

// ============================================================================
// Integration Tests
// ============================================================================

// TestTimersAndPubSubThroughApp tests the facade end to end: a timer set
// from a layer publishes a message another subscriber receives
func TestTimersAndPubSubThroughApp(t *testing.T) {
	spec := testSpec()
	spec.EnablePubSub = true
	a := New(spec, nil)

	var received atomic.Int64
	a.PushLayer(&hookLayer{
		onAttach: func() {
			pubsub.Subscribe(a.Broker(), "events", func(pubsub.Message[string]) {
				received.Add(1)
			})
			a.SetTimeout(func() {
				pubsub.Publish(a.Broker(), "events", "hello")
			}, 20*time.Millisecond)
		},
	}, "wiring")

	done := runApp(t, a, context.Background())

	require.Eventually(t, func() bool {
		return received.Load() == 1
	}, 3*time.Second, 5*time.Millisecond)

	a.Close()
	waitDone(t, done)
}

// TestCloseFromLayer tests shutdown initiated inside a timer callback
func TestCloseFromLayer(t *testing.T) {
	a := New(testSpec(), nil)

	a.PushLayer(&hookLayer{
		onAttach: func() {
			a.SetTimeout(a.Close, 30*time.Millisecond)
		},
	}, "self-closing")

	done := runApp(t, a, context.Background())
	waitDone(t, done)
	assert.False(t, a.IsRunning())
}

// hookLayer adapts closures into lifecycle hooks for tests.
type hookLayer struct {
	layer.Base
	onAttach func()
	onDetach func()
}

func (h *hookLayer) OnAttach() {
	if h.onAttach != nil {
		h.onAttach()
	}
}

func (h *hookLayer) OnDetach() {
	if h.onDetach != nil {
		h.onDetach()
	}
}
