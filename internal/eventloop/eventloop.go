// ============================================================================
// Walrus EventLoop - Deferred and periodic callback registry
// ============================================================================
//
// Package: internal/eventloop
// File: eventloop.go
// Purpose: JavaScript-style timer surface (SetTimeout / SetInterval /
// SetImmediate / ClearTimeout / ClearInterval) on top of the shared worker
// pool.
//
// Algorithm:
//   Entries live in a due-time min-heap guarded by one mutex. A single pump
//   goroutine repeatedly pops every entry whose due-time has passed, skips
//   cancelled ones, hands the rest to the pool, re-arms periodic entries by
//   advancing the due-time by exactly one period from the PREVIOUS scheduled
//   time (never from "now", so drift cannot accumulate under load), then
//   sleeps until the next due-time, capped at 100ms. The pump exits whenever
//   no entries remain and is respawned by the next registration (lazy
//   restart), so an idle loop consumes nothing.
//
// Cancellation:
//   Best-effort. The cancelled flag is honored up to the moment a due entry
//   is handed to the pool; a callback already handed over still runs once.
//   Clearing an unknown or already-fired id is a silent no-op.
//
// Policy decisions (pinned by tests):
//   - SetInterval with period <= 0 is rejected: it returns id 0 and
//     registers nothing.
//   - SetImmediate ids are never cancellable; the id exists for symmetry.
//   - A periodic callback never runs concurrently with itself: firings due
//     while the previous run is still in progress are skipped.
//
// ============================================================================

package eventloop

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/darthgelum/Walrus/internal/metrics"
	"github.com/darthgelum/Walrus/internal/scheduler"
)

var log = slog.Default()

// maxPumpSleep bounds how long the pump sleeps between scans, keeping
// latency bounded without busy-spinning.
const maxPumpSleep = 100 * time.Millisecond

// taskOrigin tags pool submissions for panic reports.
const taskOrigin = "eventloop"

// Loop is the timer registry. All methods are safe for concurrent use.
type Loop struct {
	pool      *scheduler.Pool
	collector *metrics.Collector

	mu         sync.Mutex
	heap       timerHeap
	index      map[EventID]*timer // live (pending, not cancelled) entries
	nextSeq    uint64
	running    bool
	pumpActive bool

	nextID atomic.Uint64

	// wake nudges a sleeping pump after a registration or Stop. Buffered
	// with size 1 so signals coalesce.
	wake chan struct{}
}

// New creates a loop backed by pool. collector may be nil.
func New(pool *scheduler.Pool, collector *metrics.Collector) *Loop {
	return &Loop{
		pool:      pool,
		collector: collector,
		index:     make(map[EventID]*timer),
		wake:      make(chan struct{}, 1),
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

// Start begins processing. Timers registered before Start are retained and
// become eligible now. Starting a running loop is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.ensurePumpLocked()
}

// Stop halts processing and discards every pending entry. Callbacks already
// handed to the pool still run. Stopping a stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	l.heap = nil
	l.index = make(map[EventID]*timer)
	if l.collector != nil {
		l.collector.SetTimersPending(0)
	}
	l.wakeLocked()
}

// IsRunning reports whether the loop is processing timers.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// ============================================================================
// Registration
// ============================================================================

// SetTimeout schedules callback to run once after delay. A delay <= 0 fires
// on the next pump scan. The returned id can be passed to ClearTimeout
// until the entry fires.
func (l *Loop) SetTimeout(callback func(), delay time.Duration) EventID {
	if callback == nil {
		log.Error("SetTimeout called with nil callback")
		return 0
	}
	if delay < 0 {
		delay = 0
	}
	return l.register(callback, time.Now().Add(delay), 0)
}

// SetInterval schedules callback to run every period, first at now+period,
// until cancelled. A period <= 0 is rejected: nothing is registered and the
// returned id is 0 (clearing it is a no-op).
func (l *Loop) SetInterval(callback func(), period time.Duration) EventID {
	if callback == nil {
		log.Error("SetInterval called with nil callback")
		return 0
	}
	if period <= 0 {
		log.Error("SetInterval requires a positive period", "period", period)
		return 0
	}
	return l.register(callback, time.Now().Add(period), period)
}

// SetImmediate submits callback straight to the pool with no due-time
// bookkeeping. The returned id exists for symmetry with SetTimeout and
// SetInterval and is never cancellable.
func (l *Loop) SetImmediate(callback func()) EventID {
	if callback == nil {
		log.Error("SetImmediate called with nil callback")
		return 0
	}
	if err := l.pool.Submit(scheduler.Task{Origin: taskOrigin, Run: callback}); err != nil {
		log.Error("SetImmediate submission failed", "error", err)
		return 0
	}
	if l.collector != nil {
		l.collector.RecordTimerFired()
	}
	return EventID(l.nextID.Add(1))
}

// register indexes a new entry and makes sure the pump is awake.
func (l *Loop) register(callback func(), due time.Time, period time.Duration) EventID {
	id := EventID(l.nextID.Add(1))

	l.mu.Lock()
	defer l.mu.Unlock()

	t := &timer{
		id:     id,
		fn:     callback,
		due:    due,
		period: period,
		seq:    l.nextSeq,
	}
	l.nextSeq++
	l.heap.pushTimer(t)
	l.index[id] = t
	if l.collector != nil {
		l.collector.RecordTimerScheduled()
		l.collector.SetTimersPending(len(l.index))
	}
	l.ensurePumpLocked()
	return id
}

// ============================================================================
// Cancellation
// ============================================================================

// ClearTimeout cancels a pending timer. Unknown, already-fired and
// already-cleared ids are silent no-ops. A callback already handed to the
// pool at the moment of cancellation still runs; cancellation only prevents
// future dispatch.
func (l *Loop) ClearTimeout(id EventID) {
	l.clear(id)
}

// ClearInterval cancels a periodic timer. Semantics match ClearTimeout.
func (l *Loop) ClearInterval(id EventID) {
	l.clear(id)
}

func (l *Loop) clear(id EventID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.index[id]
	if !ok {
		return
	}
	t.cancelled.Store(true)
	delete(l.index, id)
	if l.collector != nil {
		l.collector.RecordTimerCancelled()
		l.collector.SetTimersPending(len(l.index))
	}
}

// Pending returns the number of live timer entries.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.index)
}

// ============================================================================
// Pump
// ============================================================================

// ensurePumpLocked spawns the pump if it is not active, or nudges it if it
// is sleeping. Caller holds mu.
func (l *Loop) ensurePumpLocked() {
	if !l.running {
		return
	}
	if !l.pumpActive && len(l.heap) > 0 {
		l.pumpActive = true
		go l.pump()
		return
	}
	l.wakeLocked()
}

// wakeLocked nudges the pump without blocking; redundant nudges coalesce.
func (l *Loop) wakeLocked() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// pump is the driving loop. Exactly one pump runs at a time; it exits when
// the loop stops or no entries remain (lazy restart keeps an idle loop
// free). A parked goroutine holds no OS thread, so sleeping here does not
// consume pool capacity.
func (l *Loop) pump() {
	for {
		l.mu.Lock()
		if !l.running || len(l.heap) == 0 {
			l.pumpActive = false
			l.mu.Unlock()
			return
		}

		now := time.Now()
		var ready []*timer
		for len(l.heap) > 0 && !l.heap.peek().due.After(now) {
			t := l.heap.popTimer()
			if t.cancelled.Load() {
				continue
			}
			if t.period > 0 {
				// Re-arm from the previous scheduled time, not from now.
				t.due = t.due.Add(t.period)
				l.heap.pushTimer(t)
			} else {
				delete(l.index, t.id)
			}
			ready = append(ready, t)
		}

		sleep := maxPumpSleep
		if next := l.heap.peek(); next != nil {
			if until := next.due.Sub(now); until < sleep {
				sleep = until
			}
		}
		if l.collector != nil {
			l.collector.SetTimersPending(len(l.index))
		}
		l.mu.Unlock()

		for _, t := range ready {
			l.dispatch(t)
		}

		if sleep <= 0 {
			continue
		}
		timer := time.NewTimer(sleep)
		select {
		case <-l.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// dispatch hands one due entry to the pool. The callback is captured into
// the task, so a cancellation that lands after this point no longer affects
// the run. Periodic entries whose previous run is still in progress are
// skipped; the due-time has already advanced.
func (l *Loop) dispatch(t *timer) {
	if t.cancelled.Load() {
		return
	}

	run := t.fn
	if t.period > 0 {
		if !t.inFlight.CompareAndSwap(false, true) {
			return
		}
		fn := t.fn
		run = func() {
			defer t.inFlight.Store(false)
			fn()
		}
	}

	if err := l.pool.Submit(scheduler.Task{Origin: taskOrigin, Run: run}); err != nil {
		log.Error("timer dispatch failed", "id", t.id, "error", err)
		if t.period > 0 {
			t.inFlight.Store(false)
		}
		return
	}
	if l.collector != nil {
		l.collector.RecordTimerFired()
	}
}
