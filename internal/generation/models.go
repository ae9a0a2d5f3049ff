package generation

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "gemini-1.5-flash"

// Model identifies a provider model.
type Model struct {
	Service string
	Name    string
}

// legacyAliases maps retired or shorthand ids stored in old requests to current models.
var legacyAliases = map[string]string{
	"gemini-pro":            "gemini-1.5-flash",
	"gemini-1.0-pro":        "gemini-1.5-flash",
	"gemini-pro-latest":     "gemini-1.5-pro",
	"gemini-1.5-pro-latest": "gemini-1.5-pro",
	"gemini-flash":          "gemini-1.5-flash",
	"gemini-flash-latest":   "gemini-2.0-flash",
	"gpt-3.5":               "gpt-4o-mini",
	"gpt-3.5-turbo":         "gpt-4o-mini",
	"gpt-4":                 "gpt-4o",
	"chatgpt":               "gpt-4o-mini",
}

// ResolveModel maps a requested model id to its service and provider model name.
func ResolveModel(id string) (Model, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		id = DefaultModel
	}
	if alias, ok := legacyAliases[id]; ok {
		id = alias
	}
	switch {
	case strings.HasPrefix(id, "gemini-"):
		return Model{Service: domain.ServiceGemini, Name: id}, nil
	case strings.HasPrefix(id, "gpt-"), strings.HasPrefix(id, "o1"), strings.HasPrefix(id, "o3"), strings.HasPrefix(id, "o4"):
		return Model{Service: domain.ServiceOpenAI, Name: id}, nil
	default:
		return Model{}, fmt.Errorf("%w: unknown model %q", domain.ErrInvalidArgument, id)
	}
}
