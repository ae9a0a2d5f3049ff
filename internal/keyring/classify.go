package keyring

import (
	"errors"
	"strings"
)

// ErrorKind is the classified outcome of a failed generation call.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindQuota
)

func (k ErrorKind) String() string {
	if k == KindQuota {
		return "quota"
	}
	return "other"
}

var quotaMarkers = []string{"quota", "limit", "usage", "resource_exhausted"}

// ClassifyError reports KindQuota when message mentions quota, limit, usage or
// resource_exhausted (case-insensitive) or when status is 429.
func ClassifyError(message string, status int) ErrorKind {
	if status == 429 {
		return KindQuota
	}
	lower := strings.ToLower(message)
	for _, m := range quotaMarkers {
		if strings.Contains(lower, m) {
			return KindQuota
		}
	}
	return KindOther
}

// StatusCoder is implemented by provider errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// IsQuotaError classifies err using its message and, when available, its status code.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	status := 0
	var sc StatusCoder
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}
	return ClassifyError(err.Error(), status) == KindQuota
}
