// Package metrics exposes Prometheus collectors for HTTP traffic and imports
// on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service records into.
type Metrics struct {
	registry    *prometheus.Registry
	httpReqCnt  *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	httpInfl    prometheus.Gauge
	importRows  *prometheus.CounterVec
	autoCreated *prometheus.CounterVec
}

// New registers the collectors under namespace.
func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_inflight",
		Help:      "HTTP requests currently being served.",
	})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_rows_total",
		Help:      "Imported rows by entity and outcome (created, updated, failed).",
	}, []string{"entity", "outcome"})
	autoCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_auto_created_total",
		Help:      "Rows created by code while resolving import references.",
	}, []string{"table"})
	r.MustRegister(importRows, autoCreated)

	return &Metrics{
		registry:    r,
		httpReqCnt:  httpReqCnt,
		httpDur:     httpDur,
		httpInfl:    httpInfl,
		importRows:  importRows,
		autoCreated: autoCreated,
	}
}

// Middleware records count, latency and in-flight gauge per chi route
// pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInfl.Inc()
		defer m.httpInfl.Dec()

		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, routePattern(r), strconv.Itoa(status)}
		m.httpReqCnt.WithLabelValues(labels...).Inc()
		m.httpDur.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

// RecordImport adds the outcome of one import batch.
func (m *Metrics) RecordImport(entity string, created, updated, failed int, autoCreated map[string]int) {
	m.importRows.WithLabelValues(entity, "created").Add(float64(created))
	m.importRows.WithLabelValues(entity, "updated").Add(float64(updated))
	m.importRows.WithLabelValues(entity, "failed").Add(float64(failed))
	for table, n := range autoCreated {
		m.autoCreated.WithLabelValues(table).Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// routePattern keeps label cardinality bounded by using the matched pattern
// rather than the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
