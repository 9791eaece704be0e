package eventloop

// ============================================================================
// Timer entries and the due-time heap
// ============================================================================

import (
	"container/heap"
	"sync/atomic"
	"time"
)

// EventID identifies a registered timer. IDs are process-unique and
// monotonically generated; id 0 is never issued and marks a rejected
// registration.
type EventID uint64

// timer is one pending entry in the registry.
//
// Ownership: the registry owns the entry while pending. At dispatch the
// callback is captured into the execution task, so cancelling afterwards
// has no effect on the in-flight run.
type timer struct {
	id  EventID
	fn  func()
	due time.Time
	// period is non-zero only for SetInterval entries.
	period time.Duration
	// seq breaks ties between equal due-times (insertion order).
	seq uint64
	// cancelled is set by ClearTimeout/ClearInterval and checked when a
	// due entry would be handed to the pool.
	cancelled atomic.Bool
	// inFlight serializes a periodic callback with itself: while a run is
	// in progress further due firings are skipped (the due-time still
	// advances, so no drift accumulates).
	inFlight atomic.Bool
}

// timerHeap is a min-heap ordered by due-time, then insertion order.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *timerHeap) Push(x interface{}) {
	*h = append(*h, x.(*timer))
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil // avoid memory leak
	*h = old[0 : n-1]
	return t
}

// pushTimer and popTimer keep heap.Interface noise out of the loop code.

func (h *timerHeap) pushTimer(t *timer) {
	heap.Push(h, t)
}

func (h *timerHeap) popTimer() *timer {
	return heap.Pop(h).(*timer)
}

// peek returns the earliest entry without removing it.
func (h timerHeap) peek() *timer {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
