package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/ai-content-publisher/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/config"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/keyring"
	"github.com/fairyhunter13/ai-content-publisher/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-content-publisher/internal/usecase"
)

type stubQuota struct{}

func (stubQuota) Report(_ domain.Context, _, service string) (usecase.QuotaReport, error) {
	return usecase.QuotaReport{Status: keyring.Status{Service: service, Total: 1, Available: 1}}, nil
}

func newTestServer() *httpserver.Server {
	return &httpserver.Server{
		Quota:  stubQuota{},
		Checks: BuildReadinessChecks(pingFunc(func(context.Context) error { return nil }), nil, nil),
	}
}

func get(h http.Handler, path, owner string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if owner != "" {
		req.Header.Set(httpserver.HeaderOwnerID, owner)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, ParseOrigins(""))
	assert.Equal(t, []string{"*"}, ParseOrigins(" * "))
	assert.Equal(t, []string{"*"}, ParseOrigins(" , "))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, ParseOrigins("https://a.example, https://b.example,"))
}

func TestBuildRouter_Basics(t *testing.T) {
	observability.InitMetrics()
	h := BuildRouter(config.Config{CORSAllowOrigins: "*", RateLimitPerMin: 100}, newTestServer(), nil)

	assert.Equal(t, http.StatusOK, get(h, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, get(h, "/readyz", "").Code)

	rec := get(h, "/v1/quota/gemini", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	assert.Equal(t, http.StatusBadRequest, get(h, "/v1/quota/gemini", "").Code)

	rec = get(h, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))
}

func TestBuildRouter_InProcessOwnerLimit(t *testing.T) {
	h := BuildRouter(config.Config{RateLimitPerMin: 2}, newTestServer(), nil)

	assert.Equal(t, http.StatusOK, get(h, "/v1/quota/gemini", "alice").Code)
	assert.Equal(t, http.StatusOK, get(h, "/v1/quota/gemini", "alice").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/v1/quota/gemini", "alice").Code)
	// limits are per owner
	assert.Equal(t, http.StatusOK, get(h, "/v1/quota/gemini", "bob").Code)
}

func TestBuildRouter_RedisOwnerLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	limiter := ratelimiter.NewRedisLuaLimiter(rdb, ratelimiter.BucketConfig{Capacity: 1, RefillRate: 1.0 / 60})

	h := BuildRouter(config.Config{RateLimitPerMin: 100}, newTestServer(), limiter)

	assert.Equal(t, http.StatusOK, get(h, "/v1/quota/gemini", "alice").Code)
	rec := get(h, "/v1/quota/gemini", "alice")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	assert.Equal(t, http.StatusOK, get(h, "/v1/quota/gemini", "bob").Code)

	// redis outage fails open
	mr.Close()
	start := time.Now()
	assert.Equal(t, http.StatusOK, get(h, "/v1/quota/gemini", "alice").Code)
	assert.Less(t, time.Since(start), 10*time.Second)
}
