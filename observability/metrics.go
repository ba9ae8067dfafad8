package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ModuleMetrics records per-module RPC activity: request counts, error
// counts, and handler latency.
type ModuleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *ModuleMetrics
	metricsRegistry   = prometheus.NewRegistry()
)

// Metrics returns the lazily-initialised module metrics registry.
func Metrics() *ModuleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &ModuleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credchain",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credchain",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total RPC module errors segmented by module and method.",
			}, []string{"module", "method"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "credchain",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		metricsRegistry.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records one handled request.
func (m *ModuleMetrics) Observe(module, method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(module, method).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(elapsed.Seconds())
}

// Handler exposes the registry in Prometheus exposition format.
func Handler() http.Handler {
	Metrics()
	return promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})
}
