// Package publish pushes content to a CMS through an ordered ladder of request strategies.
package publish

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

// Status is the final publish state.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded"
	StatusWarning  Status = "warning"
	StatusError    Status = "error"
)

// ErrorKind classifies the last failure of a fully failed cascade.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindWAFBlocked     ErrorKind = "waf_blocked"
	KindRateLimited    ErrorKind = "rate_limited"
	KindBadCredentials ErrorKind = "bad_credentials"
	KindRESTDisabled   ErrorKind = "rest_disabled"
	KindServerError    ErrorKind = "server_error"
	KindNetwork        ErrorKind = "network"
	KindUnknown        ErrorKind = "unknown"
)

// Describe returns a Turkish explanation for end users.
func (k ErrorKind) Describe() string {
	switch k {
	case KindWAFBlocked:
		return "Site güvenlik duvarı (WAF) isteği engelledi."
	case KindRateLimited:
		return "Site çok fazla istek aldığı için isteği sınırladı."
	case KindBadCredentials:
		return "Kullanıcı adı veya uygulama şifresi hatalı."
	case KindRESTDisabled:
		return "Sitede REST API kapalı ya da adres hatalı."
	case KindServerError:
		return "Site sunucusunda bir hata oluştu."
	case KindNetwork:
		return "Siteye bağlanılamadı veya istek zaman aşımına uğradı."
	case KindNone:
		return ""
	default:
		return "Bilinmeyen bir nedenle gönderim başarısız oldu."
	}
}

// Result is the outcome of one cascade run.
type Result struct {
	Status     Status    `json:"status"`
	RemoteID   int64     `json:"remote_id,omitempty"`
	Link       string    `json:"link,omitempty"`
	Strategy   string    `json:"strategy,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Err maps the result to a domain sentinel; nil for success and degraded.
func (r Result) Err() error {
	switch r.Status {
	case StatusWarning:
		return fmt.Errorf("%w: %s", domain.ErrPublishUnverified, r.Detail)
	case StatusError:
		return fmt.Errorf("%w: %s", domain.ErrPublishBlocked, r.ErrorKind)
	default:
		return nil
	}
}

type statusCoder interface {
	StatusCode() int
}

// ClassifyFailure maps a strategy error to an ErrorKind and the HTTP status when one exists.
func ClassifyFailure(err error) (ErrorKind, int) {
	if err == nil {
		return KindNone, 0
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		status := sc.StatusCode()
		switch {
		case status == 403:
			return KindWAFBlocked, status
		case status == 429:
			return KindRateLimited, status
		case status == 401:
			return KindBadCredentials, status
		case status == 404:
			return KindRESTDisabled, status
		case status >= 500:
			return KindServerError, status
		default:
			return KindUnknown, status
		}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return KindNetwork, 0
	}
	return KindUnknown, 0
}
