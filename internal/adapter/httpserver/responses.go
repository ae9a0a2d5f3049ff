// Package httpserver contains HTTP handlers and middleware.
//
// It exposes content generation, publishing, batches and quota reporting
// as a JSON API. Owner identity comes from the trusted X-Owner-Id header.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps a domain error to its HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "QUOTA_EXCEEDED"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	case errors.Is(err, domain.ErrPublishBlocked):
		return http.StatusBadGateway, "PUBLISH_BLOCKED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// writeError renders the error envelope. The message is the end-user text;
// internal error strings are only logged.
func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	status, code := errorStatus(err)
	lg := LoggerFrom(r)
	if status >= http.StatusInternalServerError {
		lg.Error("request failed", "code", code, "error", err)
	} else {
		lg.Warn("request rejected", "code", code, "error", err)
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: domain.UserMessage(err), Details: details}})
}
