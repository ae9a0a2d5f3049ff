// Package gemini invokes Google Gemini through the genai SDK.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/generation"
)

// Invoker creates a genai client per credential; clients are cheap and keys rotate per call.
type Invoker struct {
	baseURL    string
	httpClient *http.Client
	counter    *tokencount.Counter
}

// New returns an Invoker. baseURL may be empty for the public endpoint.
func New(baseURL string, httpClient *http.Client) *Invoker {
	return &Invoker{baseURL: baseURL, httpClient: httpClient, counter: tokencount.DefaultCounter}
}

// Generate sends prompt to model using cred.
func (i *Invoker) Generate(ctx context.Context, cred domain.Credential, model, prompt string) (generation.Output, error) {
	cfg := &genai.ClientConfig{
		APIKey:     cred.Secret,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: i.httpClient,
	}
	if i.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: i.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return generation.Output{}, &generation.ProviderError{Provider: domain.ServiceGemini, Message: err.Error(), Err: err}
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return generation.Output{}, wrapError(err)
	}

	text := responseText(resp)
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	if tokens == 0 && text != "" {
		tokens = i.counter.Estimate(prompt, text, model)
	}
	return generation.Output{Text: text, Tokens: tokens}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &generation.ProviderError{Provider: domain.ServiceGemini, Status: apiErr.Code, Message: apiErr.Status + " " + apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &generation.ProviderError{Provider: domain.ServiceGemini, Status: apiErrPtr.Code, Message: apiErrPtr.Status + " " + apiErrPtr.Message, Err: err}
	}
	return &generation.ProviderError{Provider: domain.ServiceGemini, Message: err.Error(), Err: err}
}
