package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/pkg/textx"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New(validator.WithRequiredStructEnabled())
		// report fields by their json names
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// decodeJSON reads a bounded JSON body into dst and validates it. The
// returned details are suitable for the error envelope.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) ([]ValidationError, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: request body required", domain.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("%w: malformed json: %v", domain.ErrInvalidArgument, err)
	}
	if err := getValidator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return toValidationErrors(verrs), fmt.Errorf("%w: %d invalid field(s)", domain.ErrInvalidArgument, len(verrs))
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil, nil
}

func toValidationErrors(verrs validator.ValidationErrors) []ValidationError {
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, ValidationError{Field: field, Code: strings.ToUpper(fe.Tag()), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "url", "http_url":
		return "must be a valid http(s) url"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// SanitizeTopics trims topics, drops control characters and empties.
func SanitizeTopics(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = textx.SanitizeText(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
