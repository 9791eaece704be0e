// ============================================================================
// Walrus Scheduler - Shared task execution substrate
// ============================================================================
//
// Package: internal/scheduler
// File: scheduler.go
// Purpose: Fixed-size worker pool that executes the logical tasks of every
// runtime subsystem (event loop callbacks, message deliveries, layer ticks).
//
// Design:
//   A small number of worker goroutines service an unbounded task queue, so
//   logical tasks may vastly outnumber workers:
//
//   ┌───────────┐ Submit()      ┌──────────────────────┐
//   │ EventLoop │──────────────▶│ Pool                 │
//   ├───────────┤               │  queue []Task        │
//   │ Broker    │──────────────▶│  ┌────────┐          │
//   ├───────────┤               │  │Worker 1│◀─ queue  │
//   │ LayerTree │─SubmitMany()─▶│  │Worker 2│◀─ queue  │
//   └───────────┘   + Wait()    │  │Worker N│◀─ queue  │
//                               │  └────────┘          │
//                               └──────────────────────┘
//
// Barrier waits (the hard part):
//   The layer tree waits on child batches from inside tasks that are
//   themselves running on a worker. With a fixed pool, a blocking wait
//   would starve the pool once nesting exceeds the worker count. Wait is
//   therefore a helping wait: while its batch is unfinished it pops and
//   runs pending tasks from the shared queue, and only parks when the
//   queue is empty. See waitgroup.go.
//
// Failure semantics:
//   A task that panics is caught at the run boundary, reported through the
//   package logger with the originating subsystem, counted as completed
//   for barrier accounting, and never unwinds into the pool.
//
// Lifecycle:
//   1. NewPool(cfg) - construct with worker count and idle behavior
//   2. Start()      - spawn worker goroutines
//   3. Submit / SubmitMany
//   4. Stop()       - reject new work, drain the queue, join workers
//
// ============================================================================

package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/darthgelum/Walrus/internal/metrics"
)

var log = slog.Default()

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrPoolClosed is returned when work is submitted after Stop.
	ErrPoolClosed = errors.New("scheduler: pool is closed")
	// ErrPoolNotStarted is returned when work is submitted before Start.
	ErrPoolNotStarted = errors.New("scheduler: pool not started")
	// ErrNilTask is returned when a task with a nil Run is submitted.
	ErrNilTask = errors.New("scheduler: task has nil Run")
)

// ============================================================================
// Types
// ============================================================================

// IdleBehavior controls what an idle worker does when the queue is empty.
// It trades latency against CPU usage and has no effect on correctness.
type IdleBehavior int

const (
	// IdleSleep parks the worker until new work arrives.
	IdleSleep IdleBehavior = iota
	// IdleYield spins through the Go scheduler a few times, then parks.
	IdleYield
	// IdleSpin keeps rechecking the queue without parking.
	IdleSpin
)

// String returns the config-file spelling of the behavior.
func (b IdleBehavior) String() string {
	switch b {
	case IdleYield:
		return "yield"
	case IdleSpin:
		return "spin"
	default:
		return "sleep"
	}
}

// ParseIdleBehavior parses a config-file spelling. The empty string maps to
// IdleSleep.
func ParseIdleBehavior(s string) (IdleBehavior, error) {
	switch s {
	case "", "sleep":
		return IdleSleep, nil
	case "yield":
		return IdleYield, nil
	case "spin":
		return IdleSpin, nil
	}
	return IdleSleep, fmt.Errorf("scheduler: unknown idle behavior %q", s)
}

// idleSpinLimit bounds how many times IdleYield reschedules before parking.
const idleSpinLimit = 32

// Task is one unit of work. Run takes no arguments and returns nothing;
// results, if any, travel through captured state. Origin names the
// subsystem that submitted the task and appears in panic reports.
type Task struct {
	Run    func()
	Origin string

	wg *WaitGroup // set by SubmitMany
}

// Config holds pool construction parameters.
type Config struct {
	// Workers is the number of worker goroutines. Zero selects the number
	// of logical CPUs.
	Workers int
	// Idle selects the empty-queue behavior.
	Idle IdleBehavior
	// Collector receives pool metrics when non-nil.
	Collector *metrics.Collector
}

// Pool is the shared worker pool.
type Pool struct {
	mu      sync.Mutex
	queue   []Task
	waiters []chan struct{} // parked workers and barrier waiters

	workerCount int
	behavior    IdleBehavior
	collector   *metrics.Collector

	started bool
	stopped bool
	wg      sync.WaitGroup
}

// ============================================================================
// Pool lifecycle
// ============================================================================

// NewPool creates a pool. Start must be called before submitting work.
func NewPool(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		workerCount: workers,
		behavior:    cfg.Idle,
		collector:   cfg.Collector,
	}
}

// Start spawns the worker goroutines. Starting twice is an error.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("scheduler: pool already started")
	}

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	p.started = true
	return nil
}

// Stop rejects new submissions, drains the queue and joins the workers.
// Tasks already queued still run; Stop returns once they have finished.
// Stopping an unstarted or already stopped pool is a no-op.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.notifyLocked()
	p.mu.Unlock()

	p.wg.Wait()
}

// GetWorkerCount returns the configured number of workers.
func (p *Pool) GetWorkerCount() int {
	return p.workerCount
}

// IsStarted reports whether Start has been called.
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}

// QueueLen returns the number of tasks waiting to be picked up.
func (p *Pool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// ============================================================================
// Submission
// ============================================================================

// Submit enqueues one task for execution by some worker. It returns
// immediately; there is no ordering guarantee relative to other
// submissions.
func (p *Pool) Submit(t Task) error {
	if t.Run == nil {
		return ErrNilTask
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.acceptingLocked(); err != nil {
		return err
	}
	p.enqueueLocked(t)
	return nil
}

// SubmitMany enqueues a batch and returns a WaitGroup that completes once
// every task in the batch has finished (successfully or by panicking).
// An empty batch returns an already-completed WaitGroup.
func (p *Pool) SubmitMany(tasks []Task) (*WaitGroup, error) {
	for _, t := range tasks {
		if t.Run == nil {
			return nil, ErrNilTask
		}
	}

	w := &WaitGroup{
		pool:    p,
		pending: len(tasks),
		done:    make(chan struct{}),
	}
	if len(tasks) == 0 {
		close(w.done)
		return w, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.acceptingLocked(); err != nil {
		return nil, err
	}
	for _, t := range tasks {
		t.wg = w
		p.enqueueLocked(t)
	}
	return w, nil
}

// acceptingLocked reports whether the pool accepts new work. Caller holds mu.
func (p *Pool) acceptingLocked() error {
	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolClosed
	}
	return nil
}

// enqueueLocked appends a task and wakes parked workers and barrier
// waiters. Caller holds mu.
func (p *Pool) enqueueLocked(t Task) {
	p.queue = append(p.queue, t)
	if p.collector != nil {
		p.collector.RecordSubmit()
		p.collector.SetTasksPending(len(p.queue))
	}
	p.notifyLocked()
}

// notifyLocked wakes everything parked on the pool. Wakeups are broadcast;
// woken goroutines recheck the queue and park again if they lose the race.
// Caller holds mu.
func (p *Pool) notifyLocked() {
	for _, ch := range p.waiters {
		close(ch)
	}
	p.waiters = nil
}

// ============================================================================
// Execution
// ============================================================================

// worker is the main loop of one worker goroutine.
func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		t, ok := p.next()
		if !ok {
			return
		}
		p.runTask(t)
	}
}

// next blocks until a task is available. It returns ok=false only when the
// pool has been stopped and the queue fully drained, so queued work always
// runs even during shutdown.
func (p *Pool) next() (Task, bool) {
	spins := 0
	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			t := p.dequeueLocked()
			p.mu.Unlock()
			return t, true
		}
		if p.stopped {
			p.mu.Unlock()
			return Task{}, false
		}

		switch p.behavior {
		case IdleSpin:
			p.mu.Unlock()
			runtime.Gosched()
		case IdleYield:
			if spins < idleSpinLimit {
				spins++
				p.mu.Unlock()
				runtime.Gosched()
				continue
			}
			spins = 0
			p.parkLocked()
		default:
			p.parkLocked()
		}
	}
}

// dequeueLocked pops the front task. Caller holds mu and has checked the
// queue is non-empty.
func (p *Pool) dequeueLocked() Task {
	t := p.queue[0]
	p.queue[0] = Task{}
	p.queue = p.queue[1:]
	if p.collector != nil {
		p.collector.SetTasksPending(len(p.queue))
	}
	return t
}

// parkLocked registers a wakeup channel and blocks on it. Called with mu
// held; returns with mu released.
func (p *Pool) parkLocked() {
	ch := make(chan struct{})
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()
	<-ch
}

// tryRunOne pops and runs one pending task if there is one. Used by
// barrier waiters to help drain the queue.
func (p *Pool) tryRunOne() bool {
	p.mu.Lock()
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return false
	}
	t := p.dequeueLocked()
	p.mu.Unlock()
	p.runTask(t)
	return true
}

// runTask executes one task with panic isolation. The deferred block also
// performs barrier accounting, so a panicking task still counts as
// completed and never corrupts a WaitGroup.
func (p *Pool) runTask(t Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked",
				"origin", t.Origin,
				"panic", r)
			if p.collector != nil {
				p.collector.RecordTaskPanic()
			}
		}
		if p.collector != nil {
			p.collector.RecordTaskCompleted(time.Since(start).Seconds())
		}
		if t.wg != nil {
			t.wg.taskDone()
		}
	}()
	t.Run()
}
