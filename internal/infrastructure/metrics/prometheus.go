package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc/codes"
)

const namespace = "astudio"

// PrometheusExporter publishes collector state and RPC outcomes to Prometheus
type PrometheusExporter struct {
	collector *Collector

	cacheHitRate     prometheus.Gauge
	cacheKeys        prometheus.Gauge
	cacheMemoryBytes prometheus.Gauge
	definitions      prometheus.Gauge

	grpcRequests *prometheus.CounterVec
	grpcDuration *prometheus.HistogramVec
	grpcErrors   *prometheus.CounterVec
}

// NewPrometheusExporter registers the service metrics with reg, the default
// registerer when reg is nil.
func NewPrometheusExporter(collector *Collector, reg prometheus.Registerer) *PrometheusExporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	// Totals owned elsewhere are read on scrape
	counterFunc := func(subsystem, name, help string, read func() uint64) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, func() float64 { return float64(read()) })
	}
	counterFunc("registry_cache", "hits_total", "Attribute registry cache hits",
		func() uint64 { return collector.GetCacheMetrics().Hits })
	counterFunc("registry_cache", "misses_total", "Attribute registry cache misses",
		func() uint64 { return collector.GetCacheMetrics().Misses })
	counterFunc("registry_cache", "evictions_total", "Attribute registry cache evictions",
		func() uint64 { return collector.GetCacheMetrics().Evictions })
	counterFunc("registry", "loads_total", "Attribute definition snapshots read from storage",
		func() uint64 { return collector.GetRegistryMetrics().Loads })

	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
	}

	return &PrometheusExporter{
		collector:        collector,
		cacheHitRate:     gauge("registry_cache", "hit_rate", "Attribute registry cache hit rate (0.0 to 1.0)"),
		cacheKeys:        gauge("registry_cache", "keys_current", "Keys held by the attribute registry cache"),
		cacheMemoryBytes: gauge("registry_cache", "memory_bytes", "Approximate attribute registry cache size in bytes"),
		definitions:      gauge("registry", "definitions", "Attribute definitions in the last loaded snapshot"),
		grpcRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "grpc", Name: "requests_total",
			Help: "gRPC requests by method",
		}, []string{"method"}),
		grpcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "grpc", Name: "request_duration_seconds",
			Help:    "gRPC request latency by method",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"method"}),
		grpcErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "grpc", Name: "errors_total",
			Help: "Failed gRPC requests by method and status code",
		}, []string{"method", "code"}),
	}
}

// Update refreshes the gauges from the collector; call it periodically
func (e *PrometheusExporter) Update() {
	cm := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cm.HitRate)
	e.cacheKeys.Set(float64(cm.KeysCurrent))
	e.cacheMemoryBytes.Set(float64(cm.MemoryBytes))
	e.definitions.Set(float64(e.collector.GetRegistryMetrics().Definitions))
}

// ObserveCall exports one finished RPC
func (e *PrometheusExporter) ObserveCall(method string, code codes.Code, elapsed time.Duration) {
	e.grpcRequests.WithLabelValues(method).Inc()
	e.grpcDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	if code != codes.OK {
		e.grpcErrors.WithLabelValues(method, code.String()).Inc()
	}
}
