package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration records request latency by method, route, and status.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "storectl",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTPRequestDuration metric, and any additional collectors passed in.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}

// ProvisionTotal counts provisioning task outcomes.
var ProvisionTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "storectl",
		Subsystem: "provision",
		Name:      "total",
		Help:      "Total number of store provisioning attempts by result.",
	},
	[]string{"result"},
)

// ProvisionDuration records end-to-end provisioning wall-clock time.
var ProvisionDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "storectl",
		Subsystem: "provision",
		Name:      "duration_seconds",
		Help:      "Store provisioning duration in seconds, start to READY or ERROR.",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 900, 1200},
	},
)

// HelmInvocationsTotal counts helm subprocess invocations by operation and result.
var HelmInvocationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "storectl",
		Subsystem: "helm",
		Name:      "invocations_total",
		Help:      "Total number of helm CLI invocations by operation and result.",
	},
	[]string{"op", "result"},
)

// RateLimitRejectionsTotal counts requests rejected by the rate limiter.
var RateLimitRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "storectl",
		Subsystem: "rate_limit",
		Name:      "rejections_total",
		Help:      "Total number of requests rejected due to rate limiting, by endpoint.",
	},
	[]string{"endpoint"},
)

// QueueDepth reports the current length of the provisioning task queue.
var QueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "storectl",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current number of pending provisioning tasks.",
	},
)

// All returns all storectl domain-specific metrics for registration
// (HTTPRequestDuration is registered directly by NewMetricsRegistry).
func All() []prometheus.Collector {
	return []prometheus.Collector{
		ProvisionTotal,
		ProvisionDuration,
		HelmInvocationsTotal,
		RateLimitRejectionsTotal,
		QueueDepth,
	}
}
