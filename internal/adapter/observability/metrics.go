package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
		},
		[]string{"route", "method"},
	)

	GenerationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_attempts_total",
			Help: "Generation attempts by service and outcome (success, quota, empty, other, no_credential)",
		},
		[]string{"service", "outcome"},
	)
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "Duration of a single generation call in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 90},
		},
		[]string{"service"},
	)
	CredentialsExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentials_exhausted_total",
			Help: "Number of credentials marked exhausted",
		},
		[]string{"service"},
	)

	PublishAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_attempts_total",
			Help: "Publish strategy attempts by strategy and result",
		},
		[]string{"strategy", "result"},
	)
	PublishResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_results_total",
			Help: "Final publish outcomes by status and error kind",
		},
		[]string{"status", "kind"},
	)
	MediaUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Relayed image uploads by source (data, remote) and result",
		},
		[]string{"source", "result"},
	)

	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batches_total",
			Help: "Batches by kind and lifecycle event (enqueued, completed)",
		},
		[]string{"kind", "event"},
	)
	BatchesRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batches_running",
			Help: "Number of batches currently running",
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			GenerationAttemptsTotal,
			GenerationDuration,
			CredentialsExhaustedTotal,
			PublishAttemptsTotal,
			PublishResultsTotal,
			MediaUploadsTotal,
			BatchesTotal,
			BatchesRunning,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveGeneration records one generation attempt.
func ObserveGeneration(service, outcome string, d time.Duration) {
	GenerationAttemptsTotal.WithLabelValues(service, outcome).Inc()
	if d > 0 {
		GenerationDuration.WithLabelValues(service).Observe(d.Seconds())
	}
}

// CredentialExhausted counts a credential marked exhausted.
func CredentialExhausted(service string) {
	CredentialsExhaustedTotal.WithLabelValues(service).Inc()
}

// ObservePublishAttempt records one strategy attempt; result is "ok" or "fail".
func ObservePublishAttempt(strategy, result string) {
	PublishAttemptsTotal.WithLabelValues(strategy, result).Inc()
}

// ObservePublishResult records the final cascade outcome.
func ObservePublishResult(status, kind string) {
	PublishResultsTotal.WithLabelValues(status, kind).Inc()
}

// ObserveMediaUpload records one relayed image.
func ObserveMediaUpload(source, result string) {
	MediaUploadsTotal.WithLabelValues(source, result).Inc()
}

// EnqueueBatch counts a batch handed to the queue.
func EnqueueBatch(kind string) {
	BatchesTotal.WithLabelValues(kind, "enqueued").Inc()
}

// StartBatch marks a batch as running.
func StartBatch(kind string) {
	BatchesRunning.WithLabelValues(kind).Inc()
}

// CompleteBatch marks a batch as finished.
func CompleteBatch(kind string) {
	BatchesRunning.WithLabelValues(kind).Dec()
	BatchesTotal.WithLabelValues(kind, "completed").Inc()
}
