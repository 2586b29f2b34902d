// Package metrics exposes scheduler and executor counters via
// prometheus/client_golang, grounded on dshills-langgraph-go's metrics
// registration style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles the counters/gauges/histograms emitted by the
// scheduler and the executors during an execution's lifetime.
type Registry struct {
	NodesStarted   *prometheus.CounterVec
	NodesCompleted *prometheus.CounterVec
	NodesFailed    *prometheus.CounterVec
	QueueDepth     prometheus.Gauge
	ExecutionsLive prometheus.Gauge
	NodeDuration   *prometheus.HistogramVec
	ToolInvokes    *prometheus.CounterVec
	ToolBreakerHit *prometheus.CounterVec
}

// NewRegistry constructs and registers all FEC metrics against reg.
// Pass prometheus.NewRegistry() in tests to avoid global-registry
// collisions across table-driven subtests.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		NodesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fec",
			Subsystem: "scheduler",
			Name:      "nodes_started_total",
			Help:      "Number of nodes that began execution, labeled by node kind.",
		}, []string{"kind"}),
		NodesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fec",
			Subsystem: "scheduler",
			Name:      "nodes_completed_total",
			Help:      "Number of nodes that completed successfully, labeled by node kind.",
		}, []string{"kind"}),
		NodesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fec",
			Subsystem: "scheduler",
			Name:      "nodes_failed_total",
			Help:      "Number of nodes that failed, labeled by node kind and error kind.",
		}, []string{"kind", "error_kind"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fec",
			Subsystem: "scheduler",
			Name:      "ready_queue_depth",
			Help:      "Number of nodes currently in the ready set awaiting a worker slot.",
		}),
		ExecutionsLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fec",
			Subsystem: "scheduler",
			Name:      "executions_live",
			Help:      "Number of executions currently running or suspended.",
		}),
		NodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fec",
			Subsystem: "executor",
			Name:      "node_duration_seconds",
			Help:      "Wall-clock duration of a single node's execution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		ToolInvokes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fec",
			Subsystem: "tools",
			Name:      "invocations_total",
			Help:      "Number of tool invocations, labeled by tool type and outcome.",
		}, []string{"type", "outcome"}),
		ToolBreakerHit: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fec",
			Subsystem: "tools",
			Name:      "breaker_open_total",
			Help:      "Number of invocations rejected by an open circuit breaker, labeled by tool URI.",
		}, []string{"uri"}),
	}
}
