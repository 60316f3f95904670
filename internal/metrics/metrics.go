// Package metrics exposes coordinator counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	tasksSubmitted  prometheus.Counter
	tasksDispatched prometheus.Counter
	tasksCompleted  prometheus.Counter
	tasksFailed     prometheus.Counter
	tasksTimedOut   prometheus.Counter
	tasksRetried    prometheus.Counter

	dispatchLatency prometheus.Histogram

	tasksPending prometheus.Gauge
	tasksActive  prometheus.Gauge
	nodesOnline  prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		tasksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hivemind_tasks_submitted_total",
			Help: "Tasks accepted into the pending queue.",
		}),
		tasksDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "hivemind_tasks_dispatched_total",
			Help: "Tasks handed to a worker node.",
		}),
		tasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hivemind_tasks_completed_total",
			Help: "Tasks that finished successfully.",
		}),
		tasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hivemind_tasks_failed_total",
			Help: "Task failures, including timeouts later retried.",
		}),
		tasksTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "hivemind_tasks_timed_out_total",
			Help: "Tasks reaped after exceeding their timeout.",
		}),
		tasksRetried: factory.NewCounter(prometheus.CounterOpts{
			Name: "hivemind_tasks_retried_total",
			Help: "Tasks re-enqueued after a failure or timeout.",
		}),
		dispatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hivemind_dispatch_latency_seconds",
			Help:    "Dispatch-to-completion latency per task.",
			Buckets: prometheus.DefBuckets,
		}),
		tasksPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hivemind_tasks_pending",
			Help: "Tasks waiting in the queue.",
		}),
		tasksActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hivemind_tasks_active",
			Help: "Tasks dispatched or running.",
		}),
		nodesOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hivemind_nodes_online",
			Help: "Nodes currently alive.",
		}),
	}
}

func (c *Collector) RecordSubmitted()  { c.tasksSubmitted.Inc() }
func (c *Collector) RecordDispatched() { c.tasksDispatched.Inc() }
func (c *Collector) RecordRetried()    { c.tasksRetried.Inc() }
func (c *Collector) RecordTimedOut()   { c.tasksTimedOut.Inc() }
func (c *Collector) RecordFailed()     { c.tasksFailed.Inc() }

func (c *Collector) RecordCompleted(latencySeconds float64) {
	c.tasksCompleted.Inc()
	c.dispatchLatency.Observe(latencySeconds)
}

func (c *Collector) SetQueueStats(pending, active int) {
	c.tasksPending.Set(float64(pending))
	c.tasksActive.Set(float64(active))
}

func (c *Collector) SetNodesOnline(n int) {
	c.nodesOnline.Set(float64(n))
}
