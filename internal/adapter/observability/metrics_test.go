package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	InitMetrics()
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)
	r.Get("/v1/batches/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/v1/batches/{id}", http.MethodGet, "No Content"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/batches/abc", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/v1/batches/{id}", http.MethodGet, "No Content"))
	assert.Equal(t, before+1, after)
}

func TestDomainMetricHelpers(t *testing.T) {
	InitMetrics()
	InitMetrics()

	before := testutil.ToFloat64(CredentialsExhaustedTotal.WithLabelValues("gemini"))
	CredentialExhausted("gemini")
	assert.Equal(t, before+1, testutil.ToFloat64(CredentialsExhaustedTotal.WithLabelValues("gemini")))

	ObserveGeneration("gemini", "success", 2*time.Second)
	ObserveGeneration("gemini", "no_credential", 0)
	ObservePublishAttempt("full", "fail")
	ObservePublishResult("success", "")
	ObserveMediaUpload("data", "ok")

	StartBatch("generate")
	assert.Equal(t, 1.0, testutil.ToFloat64(BatchesRunning.WithLabelValues("generate")))
	CompleteBatch("generate")
	assert.Equal(t, 0.0, testutil.ToFloat64(BatchesRunning.WithLabelValues("generate")))
	EnqueueBatch("publish")
}
