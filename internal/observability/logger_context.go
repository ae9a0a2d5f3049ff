// Package observability carries request-scoped logging state through contexts.
package observability

import (
	"context"
	"log/slog"
)

type loggerContextKey struct{}

type requestIDContextKey struct{}

type ownerContextKey struct{}

// ContextWithLogger attaches a non-nil logger to the context.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, lg)
}

// LoggerFromContext returns the logger stored in the context or slog.Default.
// The request id and owner found in ctx are attached as attributes.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	lg := slog.Default()
	if v, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && v != nil {
		lg = v
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		lg = lg.With(slog.String("request_id", rid))
	}
	if owner := OwnerFromContext(ctx); owner != "" {
		lg = lg.With(slog.String("owner", owner))
	}
	return lg
}

// ContextWithRequestID stores a non-empty request id so queue workers and
// outbound clients can correlate their logs with the originating request.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	rid, _ := ctx.Value(requestIDContextKey{}).(string)
	return rid
}

// ContextWithOwner stores the acting owner id.
func ContextWithOwner(ctx context.Context, owner string) context.Context {
	if ctx == nil || owner == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerContextKey{}, owner)
}

// OwnerFromContext returns the acting owner id or "".
func OwnerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	owner, _ := ctx.Value(ownerContextKey{}).(string)
	return owner
}
