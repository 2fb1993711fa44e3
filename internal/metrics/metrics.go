// Package metrics exposes Prometheus collectors for bootstrap stages, fetches
// and the HTTP surface.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

const namespace = "edgerandom"

// Metrics holds the application collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	stageAttempts *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	ready         prometheus.Gauge

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates Metrics and registers its collectors together with the
// process and Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_attempts_total",
				Help:      "Pipeline stage attempts by stage and result.",
			},
			[]string{"stage", "result"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stage attempts.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"stage"},
		),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "ready",
			Help:      "1 once the service is deployed and fetches are accepted.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"method", "path"},
		),
	}

	m.registry.MustRegister(
		m.stageAttempts,
		m.stageDuration,
		m.ready,
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStage records one stage attempt. A successful deploy attempt marks
// the pipeline ready.
func (m *Metrics) ObserveStage(stage model.Stage, err error, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	m.stageAttempts.WithLabelValues(string(stage), Result(err)).Inc()
	m.stageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())

	if stage == model.StageDeploy && err == nil {
		m.ready.Set(1)
	}
}

// Result maps an error to a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrMissingLicense):
		return "missing_license"
	case errors.Is(err, model.ErrEngineFailure):
		return "engine_failure"
	case errors.Is(err, model.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, model.ErrNoTokenInResponse):
		return "no_token"
	case errors.Is(err, model.ErrExchangeFailed):
		return "exchange_failed"
	case errors.Is(err, model.ErrArtifactNotFound):
		return "artifact_not_found"
	case errors.Is(err, model.ErrDeployFailed):
		return "deploy_failed"
	case errors.Is(err, model.ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, model.ErrTransport):
		return "transport"
	case errors.Is(err, model.ErrDecode):
		return "decode"
	default:
		return "error"
	}
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath collapses unknown paths so scanners cannot inflate label
// cardinality.
func canonicalPath(raw string) string {
	switch raw {
	case "/", "/random", "/metrics",
		"/api/v1/random", "/api/v1/status", "/api/v1/events", "/api/v1/health":
		return raw
	}
	if strings.HasPrefix(raw, "/static/") {
		return "/static"
	}
	return "other"
}
