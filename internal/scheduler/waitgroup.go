// ============================================================================
// Walrus Scheduler - Batch barrier
// ============================================================================
//
// Package: internal/scheduler
// File: waitgroup.go
// Purpose: Completion barrier for a batch submitted via Pool.SubmitMany.
//
// Re-entrant waiting:
//   Wait may be called from the controlling goroutine or from inside a task
//   running on the pool. In the latter case a plain blocking wait could
//   starve a fixed pool (nested barriers exceeding the worker count would
//   deadlock), so Wait helps: while the batch is unfinished it pops and
//   runs pending tasks from the shared queue and only parks when the queue
//   is empty. A waiting parent therefore executes its own descendants when
//   no worker is free. Nesting depth is bounded by memory, not by the
//   worker count.
//
// ============================================================================

package scheduler

import "sync"

// WaitGroup is the completion handle for one batch. The zero value is not
// usable; WaitGroups are created by Pool.SubmitMany.
type WaitGroup struct {
	pool    *Pool
	mu      sync.Mutex
	pending int
	done    chan struct{}
}

// Wait blocks until every task in the batch has completed, successfully or
// by panicking. It is safe to call from within pool-run tasks and from
// multiple goroutines; it returns immediately for an already-completed
// batch.
func (w *WaitGroup) Wait() {
	for {
		select {
		case <-w.done:
			return
		default:
		}

		// Help drain the shared queue while the batch is unfinished.
		if w.pool.tryRunOne() {
			continue
		}

		// Queue empty: park until either the batch completes or new work
		// arrives. Registration is rechecked under the pool lock so a
		// submission between tryRunOne and parking cannot be missed.
		w.pool.mu.Lock()
		if len(w.pool.queue) > 0 {
			w.pool.mu.Unlock()
			continue
		}
		ch := make(chan struct{})
		w.pool.waiters = append(w.pool.waiters, ch)
		w.pool.mu.Unlock()

		select {
		case <-w.done:
			return
		case <-ch:
		}
	}
}

// Done reports whether the batch has completed without blocking.
func (w *WaitGroup) Done() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// taskDone is called by the pool once per batch task, including tasks that
// panicked.
func (w *WaitGroup) taskDone() {
	w.mu.Lock()
	w.pending--
	if w.pending == 0 {
		close(w.done)
	}
	w.mu.Unlock()
}
