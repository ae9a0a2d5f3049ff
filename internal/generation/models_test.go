package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

func TestResolveModel(t *testing.T) {
	tests := []struct {
		in      string
		service string
		name    string
	}{
		{"", domain.ServiceGemini, DefaultModel},
		{"gemini-pro", domain.ServiceGemini, "gemini-1.5-flash"},
		{"Gemini-1.5-Pro-Latest", domain.ServiceGemini, "gemini-1.5-pro"},
		{"gemini-2.0-flash", domain.ServiceGemini, "gemini-2.0-flash"},
		{"gpt-3.5-turbo", domain.ServiceOpenAI, "gpt-4o-mini"},
		{"gpt-4o", domain.ServiceOpenAI, "gpt-4o"},
		{"o3-mini", domain.ServiceOpenAI, "o3-mini"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ResolveModel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, Model{Service: tt.service, Name: tt.name}, m)
		})
	}

	_, err := ResolveModel("claude-3")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
