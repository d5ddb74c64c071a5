package rpc

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type apiMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	apiMetricsOnce sync.Once
	apiRegistry    *apiMetrics
)

// Metrics returns the lazily-initialised API metrics registry used to record
// HTTP activity.
func Metrics() *apiMetrics {
	apiMetricsOnce.Do(func() {
		apiRegistry = &apiMetrics{
			registry: prometheus.NewRegistry(),
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "amm",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by route, method and status.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "amm",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency segmented by route.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
		}
		apiRegistry.registry.MustRegister(apiRegistry.requests, apiRegistry.latency)
	})
	return apiRegistry
}

// Handler exposes the registry in Prometheus exposition format.
func (m *apiMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records one handled request.
func (m *apiMetrics) Observe(route, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with request counting and latency observation.
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		Metrics().Observe(route, r.Method, recorder.status, time.Since(start))
	}
}
