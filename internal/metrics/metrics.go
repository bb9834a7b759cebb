// Package metrics exposes Prometheus instrumentation for pools.
//
// A Collector is created once per process (or per test) and shared by every
// pool that should report into it. All methods are safe on a nil receiver so
// uninstrumented pools pay nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pmemkit"

// Collector holds the pool metric vectors. Every series is labelled with the
// pool's layout name.
type Collector struct {
	commits       *prometheus.CounterVec
	aborts        *prometheus.CounterVec
	recoveries    *prometheus.CounterVec
	allocFailures *prometheus.CounterVec
	commitLatency *prometheus.HistogramVec
	heapUsed      *prometheus.GaugeVec
	heapSize      *prometheus.GaugeVec
}

// New creates a Collector and registers it with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "commits_total",
			Help:      "Transactions committed.",
		}, []string{"layout"}),
		aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "aborts_total",
			Help:      "Transactions rolled back.",
		}, []string{"layout"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "recoveries_total",
			Help:      "Interrupted transactions rolled back at open.",
		}, []string{"layout"}),
		allocFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alloc",
			Name:      "failures_total",
			Help:      "Heap allocations that could not be satisfied.",
		}, []string{"layout"}),
		commitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "commit_duration_seconds",
			Help:      "Time spent flushing a transaction commit.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"layout"}),
		heapUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "heap",
			Name:      "used_bytes",
			Help:      "Heap bytes in allocated blocks, headers included.",
		}, []string{"layout"}),
		heapSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "heap",
			Name:      "size_bytes",
			Help:      "Total heap size.",
		}, []string{"layout"}),
	}
	for _, col := range []prometheus.Collector{
		c.commits, c.aborts, c.recoveries, c.allocFailures,
		c.commitLatency, c.heapUsed, c.heapSize,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// TxCommitted records a commit and how long its flush took.
func (c *Collector) TxCommitted(layout string, d time.Duration) {
	if c == nil {
		return
	}
	c.commits.WithLabelValues(layout).Inc()
	c.commitLatency.WithLabelValues(layout).Observe(d.Seconds())
}

// TxAborted records a rollback.
func (c *Collector) TxAborted(layout string) {
	if c == nil {
		return
	}
	c.aborts.WithLabelValues(layout).Inc()
}

// Recovered records a rollback performed while opening a pool.
func (c *Collector) Recovered(layout string) {
	if c == nil {
		return
	}
	c.recoveries.WithLabelValues(layout).Inc()
}

// AllocFailed records an allocation the heap could not satisfy.
func (c *Collector) AllocFailed(layout string) {
	if c == nil {
		return
	}
	c.allocFailures.WithLabelValues(layout).Inc()
}

// HeapUsage sets the heap gauges.
func (c *Collector) HeapUsage(layout string, used, size uint64) {
	if c == nil {
		return
	}
	c.heapUsed.WithLabelValues(layout).Set(float64(used))
	c.heapSize.WithLabelValues(layout).Set(float64(size))
}
