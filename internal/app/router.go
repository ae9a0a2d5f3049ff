// Package app wires HTTP routing, readiness checks and background sweepers.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/ai-content-publisher/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/config"
	"github.com/fairyhunter13/ai-content-publisher/internal/service/ratelimiter"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
// limiter may be nil, in which case per-owner limits fall back to an
// in-process httprate counter.
func BuildRouter(cfg config.Config, srv *httpserver.Server, limiter ratelimiter.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", "Location", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(httpserver.RequireOwner)
		v1.Use(ownerLimit(cfg, limiter))

		v1.Group(func(short chi.Router) {
			short.Use(httpserver.TimeoutMiddleware(30 * time.Second))
			short.Get("/batches/{id}", srv.GetBatchHandler())
			short.Get("/quota/{service}", srv.QuotaHandler())
			short.Post("/credentials", srv.CreateCredentialHandler())
			short.Post("/sites", srv.CreateSiteHandler())
		})
		// generation and the publish cascade carry their own per-step timeouts
		v1.Post("/generate", srv.GenerateHandler())
		v1.Post("/articles/{id}/publish", srv.PublishHandler())
		v1.Post("/batches", srv.SubmitBatchHandler())
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	return httpserver.SecurityHeaders(r)
}

func ownerLimit(cfg config.Config, limiter ratelimiter.Limiter) func(http.Handler) http.Handler {
	if limiter != nil {
		return httpserver.OwnerRateLimit(limiter)
	}
	return httprate.Limit(cfg.RateLimitPerMin, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return r.Header.Get(httpserver.HeaderOwnerID), nil
		}),
	)
}
