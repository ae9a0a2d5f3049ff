package generation

import "fmt"

// ProviderError normalises provider SDK failures into message plus status.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// StatusCode exposes the HTTP status for quota classification.
func (e *ProviderError) StatusCode() int { return e.Status }

func (e *ProviderError) Unwrap() error { return e.Err }
