// ============================================================================
// Walrus Metrics - Prometheus instrumentation
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collects and exposes runtime metrics for the scheduler, event
// loop, broker and layer tree.
//
// Metric families:
//
//   1. Counters (cumulative):
//      - walrus_tasks_submitted_total: tasks handed to the worker pool
//      - walrus_tasks_completed_total: tasks finished (success or panic)
//      - walrus_task_panics_total: tasks that panicked at the run boundary
//      - walrus_timers_scheduled_total: SetTimeout/SetInterval registrations
//      - walrus_timers_fired_total: timer callbacks dispatched
//      - walrus_timers_cancelled_total: effective ClearTimeout/ClearInterval
//      - walrus_messages_published_total: Publish calls while running
//      - walrus_messages_delivered_total: handler invocations
//
//   2. Histograms:
//      - walrus_task_duration_seconds: task execution time
//      - walrus_tick_duration_seconds: full layer-tree tick wall time
//
//   3. Gauges (instantaneous):
//      - walrus_tasks_pending: queued tasks not yet picked up
//      - walrus_timers_pending: live timer entries
//      - walrus_subscribers: registered subscriptions
//
// Exposure:
//   Served on /metrics by StartServer, Prometheus text format. Enabled via
//   the metrics section of the config file.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates all runtime metrics.
type Collector struct {
	tasksSubmitted prometheus.Counter
	tasksCompleted prometheus.Counter
	taskPanics     prometheus.Counter
	taskDuration   prometheus.Histogram

	timersScheduled prometheus.Counter
	timersFired     prometheus.Counter
	timersCancelled prometheus.Counter

	messagesPublished prometheus.Counter
	messagesDelivered prometheus.Counter

	tickDuration prometheus.Histogram

	tasksPending  prometheus.Gauge
	timersPending prometheus.Gauge
	subscribers   prometheus.Gauge
}

// NewCollector creates a collector and registers every metric with the
// default registerer.
func NewCollector() *Collector {
	c := &Collector{
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_tasks_submitted_total",
			Help: "Total number of tasks submitted to the worker pool",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_tasks_completed_total",
			Help: "Total number of tasks completed (including panicked tasks)",
		}),
		taskPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_task_panics_total",
			Help: "Total number of tasks that panicked at the pool boundary",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "walrus_task_duration_seconds",
			Help:    "Task execution time in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		timersScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_timers_scheduled_total",
			Help: "Total number of timers registered via SetTimeout/SetInterval",
		}),
		timersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_timers_fired_total",
			Help: "Total number of timer callbacks dispatched to the pool",
		}),
		timersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_timers_cancelled_total",
			Help: "Total number of timers cancelled before firing",
		}),
		messagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_messages_published_total",
			Help: "Total number of messages accepted by Publish",
		}),
		messagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_messages_delivered_total",
			Help: "Total number of subscriber handler invocations",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "walrus_tick_duration_seconds",
			Help:    "Layer tree tick wall time in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		tasksPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walrus_tasks_pending",
			Help: "Current number of tasks queued in the worker pool",
		}),
		timersPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walrus_timers_pending",
			Help: "Current number of live timer entries",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walrus_subscribers",
			Help: "Current number of registered subscriptions",
		}),
	}

	prometheus.MustRegister(c.tasksSubmitted)
	prometheus.MustRegister(c.tasksCompleted)
	prometheus.MustRegister(c.taskPanics)
	prometheus.MustRegister(c.taskDuration)
	prometheus.MustRegister(c.timersScheduled)
	prometheus.MustRegister(c.timersFired)
	prometheus.MustRegister(c.timersCancelled)
	prometheus.MustRegister(c.messagesPublished)
	prometheus.MustRegister(c.messagesDelivered)
	prometheus.MustRegister(c.tickDuration)
	prometheus.MustRegister(c.tasksPending)
	prometheus.MustRegister(c.timersPending)
	prometheus.MustRegister(c.subscribers)

	return c
}

// RecordSubmit records a task handed to the pool.
func (c *Collector) RecordSubmit() {
	c.tasksSubmitted.Inc()
}

// RecordTaskCompleted records a finished task and its duration.
func (c *Collector) RecordTaskCompleted(seconds float64) {
	c.tasksCompleted.Inc()
	c.taskDuration.Observe(seconds)
}

// RecordTaskPanic records a task that panicked.
func (c *Collector) RecordTaskPanic() {
	c.taskPanics.Inc()
}

// RecordTimerScheduled records a new timer registration.
func (c *Collector) RecordTimerScheduled() {
	c.timersScheduled.Inc()
}

// RecordTimerFired records a timer callback dispatch.
func (c *Collector) RecordTimerFired() {
	c.timersFired.Inc()
}

// RecordTimerCancelled records an effective cancellation.
func (c *Collector) RecordTimerCancelled() {
	c.timersCancelled.Inc()
}

// RecordPublish records an accepted publish.
func (c *Collector) RecordPublish() {
	c.messagesPublished.Inc()
}

// RecordDelivery records one handler invocation.
func (c *Collector) RecordDelivery() {
	c.messagesDelivered.Inc()
}

// RecordTick records the wall time of one full tree tick.
func (c *Collector) RecordTick(seconds float64) {
	c.tickDuration.Observe(seconds)
}

// SetTasksPending updates the queued-task gauge.
func (c *Collector) SetTasksPending(n int) {
	c.tasksPending.Set(float64(n))
}

// SetTimersPending updates the live-timer gauge.
func (c *Collector) SetTimersPending(n int) {
	c.timersPending.Set(float64(n))
}

// SetSubscribers updates the subscription gauge.
func (c *Collector) SetSubscribers(n int) {
	c.subscribers.Set(float64(n))
}

// StartServer starts the Prometheus metrics HTTP server on the given port.
// It blocks, so callers normally run it in a goroutine.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
