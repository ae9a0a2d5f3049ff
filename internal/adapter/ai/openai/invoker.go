// Package openai invokes OpenAI-compatible chat completion endpoints.
package openai

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/generation"
)

// Invoker sends a single user message per call.
type Invoker struct {
	baseURL    string
	httpClient *http.Client
	counter    *tokencount.Counter
}

// New returns an Invoker for baseURL (e.g. https://api.openai.com/v1).
func New(baseURL string, httpClient *http.Client) *Invoker {
	return &Invoker{baseURL: baseURL, httpClient: httpClient, counter: tokencount.DefaultCounter}
}

// Generate sends prompt to model using cred.
func (i *Invoker) Generate(ctx context.Context, cred domain.Credential, model, prompt string) (generation.Output, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cred.Secret),
		// the rotating client owns retries
		option.WithMaxRetries(0),
	}
	if i.baseURL != "" {
		opts = append(opts, option.WithBaseURL(i.baseURL))
	}
	if i.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(i.httpClient))
	}
	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if apiErr.Code != "" {
				msg = apiErr.Code + ": " + msg
			}
			return generation.Output{}, &generation.ProviderError{Provider: domain.ServiceOpenAI, Status: apiErr.StatusCode, Message: msg, Err: err}
		}
		return generation.Output{}, &generation.ProviderError{Provider: domain.ServiceOpenAI, Message: err.Error(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return generation.Output{}, nil
	}
	text := resp.Choices[0].Message.Content
	tokens := int(resp.Usage.TotalTokens)
	if tokens == 0 && text != "" {
		tokens = i.counter.Estimate(prompt, text, model)
	}
	return generation.Output{Text: text, Tokens: tokens}, nil
}
