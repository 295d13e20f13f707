// ============================================================================
// Hive Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose Prometheus metrics for a running Hive.
//
// Metric Categories:
//
//   1. Task Counters - cumulative, monotonically increasing:
//      - hive_tasks_submitted_total
//      - hive_tasks_completed_total
//      - hive_tasks_failed_total
//      - hive_tasks_retried_total
//      - hive_tasks_max_retries_total
//      - hive_tasks_panicked_total
//      - hive_tasks_unprocessed_total
//
//   2. Performance Metrics (Histogram):
//      - hive_task_duration_seconds: successful task latency distribution
//
//   3. Status Metrics (Gauge):
//      - hive_queue_depth: current number of queued, not-yet-dispatched tasks
//      - hive_active_workers: workers currently executing a task
//
// Prometheus Query Examples:
//
//   # Tasks completed per minute
//   rate(hive_tasks_completed_total[1m])
//
//   # 95th percentile task latency
//   histogram_quantile(0.95, hive_task_duration_seconds_bucket)
//
//   # Failure rate
//   rate(hive_tasks_failed_total[5m]) / rate(hive_tasks_submitted_total[5m])
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects Prometheus metrics for a Hive instance.
type Collector struct {
	tasksSubmitted   prometheus.Counter
	tasksCompleted   prometheus.Counter
	tasksFailed      prometheus.Counter
	tasksRetried     prometheus.Counter
	tasksMaxRetries  prometheus.Counter
	tasksPanicked    prometheus.Counter
	tasksUnprocessed prometheus.Counter

	taskDuration prometheus.Histogram

	queueDepth    prometheus.Gauge
	activeWorkers prometheus.Gauge

	active atomic.Int64
}

// NewCollector creates a new metrics collector. namespace prefixes every
// metric name (e.g. "hive" yields "hive_tasks_submitted_total"), so
// multiple Hive instances in one process can register under distinct
// namespaces without colliding.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: namespace + "_tasks_submitted_total",
			Help: "Total number of tasks submitted to the hive",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: namespace + "_tasks_completed_total",
			Help: "Total number of tasks completed successfully",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: namespace + "_tasks_failed_total",
			Help: "Total number of tasks that ended in a terminal failure",
		}),
		tasksRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: namespace + "_tasks_retried_total",
			Help: "Total number of retry attempts scheduled",
		}),
		tasksMaxRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: namespace + "_tasks_max_retries_total",
			Help: "Total number of tasks that exhausted their retry budget",
		}),
		tasksPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: namespace + "_tasks_panicked_total",
			Help: "Total number of tasks whose worker call panicked",
		}),
		tasksUnprocessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: namespace + "_tasks_unprocessed_total",
			Help: "Total number of tasks abandoned unstarted by a fatal error or shutdown",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    namespace + "_task_duration_seconds",
			Help:    "Successful task execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: namespace + "_queue_depth",
			Help: "Current number of queued, not-yet-dispatched tasks",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: namespace + "_active_workers",
			Help: "Current number of workers executing a task",
		}),
	}

	prometheus.MustRegister(
		c.tasksSubmitted,
		c.tasksCompleted,
		c.tasksFailed,
		c.tasksRetried,
		c.tasksMaxRetries,
		c.tasksPanicked,
		c.tasksUnprocessed,
		c.taskDuration,
		c.queueDepth,
		c.activeWorkers,
	)

	return c
}

func (c *Collector) RecordSubmitted()           { c.tasksSubmitted.Inc() }
func (c *Collector) RecordRetry()               { c.tasksRetried.Inc() }
func (c *Collector) RecordMaxRetriesAttempted() { c.tasksMaxRetries.Inc() }
func (c *Collector) RecordPanic()               { c.tasksPanicked.Inc() }
func (c *Collector) RecordFailed()              { c.tasksFailed.Inc() }
func (c *Collector) RecordUnprocessed()         { c.tasksUnprocessed.Inc() }

// RecordCompleted records a successful completion with its latency.
func (c *Collector) RecordCompleted(latencySeconds float64) {
	c.tasksCompleted.Inc()
	c.taskDuration.Observe(latencySeconds)
}

// SetQueueDepth updates the queue depth gauge.
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// IncActive and DecActive track the active worker count via an internal
// atomic counter, pushed to the gauge on every change.
func (c *Collector) IncActive() {
	c.activeWorkers.Set(float64(c.active.Add(1)))
}

func (c *Collector) DecActive() {
	c.activeWorkers.Set(float64(c.active.Add(-1)))
}

// StartServer starts the Prometheus metrics HTTP server on the given port.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
