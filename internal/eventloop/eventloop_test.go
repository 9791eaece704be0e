package eventloop

// ============================================================================
// Event Loop Test File
// Purpose: Verify one-shot and periodic firing, cancellation semantics,
// immediate dispatch and lifecycle behavior
// ============================================================================

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darthgelum/Walrus/internal/scheduler"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	pool := scheduler.NewPool(scheduler.Config{Workers: 4})
	require.NoError(t, pool.Start())
	t.Cleanup(pool.Stop)

	loop := New(pool, nil)
	loop.Start()
	t.Cleanup(loop.Stop)
	return loop
}

// ============================================================================
// SetTimeout Tests
// ============================================================================

// TestSetTimeoutFiresOnce tests a single deferred firing at or after its delay
func TestSetTimeoutFiresOnce(t *testing.T) {
	loop := startLoop(t)

	var count atomic.Int64
	start := time.Now()
	var firedAfter atomic.Int64

	id := loop.SetTimeout(func() {
		firedAfter.Store(int64(time.Since(start)))
		count.Add(1)
	}, 50*time.Millisecond)
	assert.NotZero(t, id)

	require.Eventually(t, func() bool {
		return count.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Never before the delay.
	assert.GreaterOrEqual(t, time.Duration(firedAfter.Load()), 50*time.Millisecond)

	// Never a second time.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int64(1), count.Load())
	assert.Equal(t, 0, loop.Pending())
}

// TestSetTimeoutZeroDelay tests that a zero delay fires promptly
func TestSetTimeoutZeroDelay(t *testing.T) {
	loop := startLoop(t)

	var fired atomic.Bool
	loop.SetTimeout(func() { fired.Store(true) }, 0)

	require.Eventually(t, func() bool {
		return fired.Load()
	}, time.Second, 2*time.Millisecond)
}

// TestSetTimeoutNilCallback tests nil callback rejection
func TestSetTimeoutNilCallback(t *testing.T) {
	loop := startLoop(t)
	assert.Zero(t, loop.SetTimeout(nil, 10*time.Millisecond))
}

// TestClearTimeoutBeforeDue tests cancellation of a pending timer
func TestClearTimeoutBeforeDue(t *testing.T) {
	loop := startLoop(t)

	var fired atomic.Bool
	id := loop.SetTimeout(func() { fired.Store(true) }, 100*time.Millisecond)
	loop.ClearTimeout(id)

	time.Sleep(200 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.Equal(t, 0, loop.Pending())
}

// TestClearUnknownID tests that unknown and repeated clears are no-ops
func TestClearUnknownID(t *testing.T) {
	loop := startLoop(t)

	loop.ClearTimeout(0)
	loop.ClearTimeout(12345)

	id := loop.SetTimeout(func() {}, 50*time.Millisecond)
	loop.ClearTimeout(id)
	loop.ClearTimeout(id)
	loop.ClearInterval(id)
}

// ============================================================================
// SetInterval Tests
// ============================================================================

// TestSetIntervalFireCount tests the firing count over a fixed window and
// that the count freezes after cancellation
func TestSetIntervalFireCount(t *testing.T) {
	loop := startLoop(t)

	var count atomic.Int64
	id := loop.SetInterval(func() { count.Add(1) }, 100*time.Millisecond)
	require.NotZero(t, id)

	time.Sleep(550 * time.Millisecond)
	fired := count.Load()
	assert.GreaterOrEqual(t, fired, int64(4))
	assert.LessOrEqual(t, fired, int64(6))

	loop.ClearInterval(id)
	frozen := count.Load()
	time.Sleep(300 * time.Millisecond)
	assert.LessOrEqual(t, count.Load(), frozen+1, "at most one in-flight firing may land after cancellation")
}

// TestSetIntervalNoDrift tests that the nth firing tracks n periods from
// registration rather than accumulating per-firing lag
func TestSetIntervalNoDrift(t *testing.T) {
	loop := startLoop(t)

	const period = 50 * time.Millisecond
	start := time.Now()

	var mu sync.Mutex
	var firings []time.Duration
	id := loop.SetInterval(func() {
		mu.Lock()
		firings = append(firings, time.Since(start))
		mu.Unlock()
	}, period)
	defer loop.ClearInterval(id)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(firings) >= 8
	}, 3*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, at := range firings[:8] {
		ideal := time.Duration(i+1) * period
		assert.GreaterOrEqual(t, at, ideal-5*time.Millisecond, "firing %d too early", i)
		assert.Less(t, at, ideal+120*time.Millisecond, "firing %d drifted", i)
	}
}

// TestSetIntervalFirstFiringDelayed tests that the first firing waits a full period
func TestSetIntervalFirstFiringDelayed(t *testing.T) {
	loop := startLoop(t)

	var count atomic.Int64
	id := loop.SetInterval(func() { count.Add(1) }, 120*time.Millisecond)
	defer loop.ClearInterval(id)

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, count.Load())
}

// TestSetIntervalRejectsNonPositivePeriod tests the period validation policy
func TestSetIntervalRejectsNonPositivePeriod(t *testing.T) {
	loop := startLoop(t)

	assert.Zero(t, loop.SetInterval(func() {}, 0))
	assert.Zero(t, loop.SetInterval(func() {}, -time.Second))
	assert.Equal(t, 0, loop.Pending())
}

// TestSetIntervalNoSelfOverlap tests that a slow periodic callback is never
// run concurrently with itself; firings due during a run are skipped
func TestSetIntervalNoSelfOverlap(t *testing.T) {
	loop := startLoop(t)

	var active atomic.Int64
	var overlapped atomic.Bool
	var runs atomic.Int64

	id := loop.SetInterval(func() {
		if active.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(80 * time.Millisecond) // much longer than the period
		active.Add(-1)
		runs.Add(1)
	}, 20*time.Millisecond)
	defer loop.ClearInterval(id)

	require.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, 3*time.Second, 5*time.Millisecond)
	assert.False(t, overlapped.Load())
}

// ============================================================================
// SetImmediate Tests
// ============================================================================

// TestSetImmediate tests next-opportunity execution
func TestSetImmediate(t *testing.T) {
	loop := startLoop(t)

	var fired atomic.Bool
	id := loop.SetImmediate(func() { fired.Store(true) })
	assert.NotZero(t, id)

	require.Eventually(t, func() bool {
		return fired.Load()
	}, time.Second, 2*time.Millisecond)

	// Immediates never enter the pending index.
	assert.Equal(t, 0, loop.Pending())
}

// TestSetImmediateNotCancellable tests that clearing an immediate id is a no-op
func TestSetImmediateNotCancellable(t *testing.T) {
	loop := startLoop(t)

	var fired atomic.Bool
	id := loop.SetImmediate(func() {
		time.Sleep(10 * time.Millisecond)
		fired.Store(true)
	})
	loop.ClearTimeout(id)

	require.Eventually(t, func() bool {
		return fired.Load()
	}, time.Second, 2*time.Millisecond)
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

// TestTimersRegisteredBeforeStart tests that pre-start registrations are
// retained and fire once the loop starts
func TestTimersRegisteredBeforeStart(t *testing.T) {
	pool := scheduler.NewPool(scheduler.Config{Workers: 2})
	require.NoError(t, pool.Start())
	t.Cleanup(pool.Stop)

	loop := New(pool, nil)

	var fired atomic.Bool
	id := loop.SetTimeout(func() { fired.Store(true) }, 20*time.Millisecond)
	assert.NotZero(t, id)
	assert.Equal(t, 1, loop.Pending())

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load(), "nothing may fire before Start")

	loop.Start()
	t.Cleanup(loop.Stop)

	require.Eventually(t, func() bool {
		return fired.Load()
	}, time.Second, 5*time.Millisecond)
}

// TestStopDiscardsPending tests that Stop drops every pending entry
func TestStopDiscardsPending(t *testing.T) {
	loop := startLoop(t)

	var fired atomic.Bool
	loop.SetTimeout(func() { fired.Store(true) }, 100*time.Millisecond)
	loop.SetInterval(func() { fired.Store(true) }, 100*time.Millisecond)
	assert.Equal(t, 2, loop.Pending())

	loop.Stop()
	assert.False(t, loop.IsRunning())
	assert.Equal(t, 0, loop.Pending())

	time.Sleep(250 * time.Millisecond)
	assert.False(t, fired.Load())
}

// TestRestartAfterStop tests that a stopped loop accepts and fires new timers
func TestRestartAfterStop(t *testing.T) {
	loop := startLoop(t)
	loop.Stop()
	loop.Start()

	var fired atomic.Bool
	loop.SetTimeout(func() { fired.Store(true) }, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return fired.Load()
	}, time.Second, 5*time.Millisecond)
}

// ============================================================================
// Ordering Tests
// ============================================================================

// TestDueOrder tests that timers become eligible in due-time order
func TestDueOrder(t *testing.T) {
	loop := startLoop(t)

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	loop.SetTimeout(func() { record("late") }, 120*time.Millisecond)
	loop.SetTimeout(func() { record("early") }, 30*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"early", "late"}, order)
}
