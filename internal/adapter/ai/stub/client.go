// Package stub provides a deterministic offline invoker for local runs and tests.
package stub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/generation"
)

// Invoker echoes the prompt as a small markdown article.
// Secrets starting with "quota-" fail with a 429 so key rotation can be exercised offline.
type Invoker struct {
	Latency time.Duration
}

// New returns a stub invoker.
func New() *Invoker { return &Invoker{Latency: 20 * time.Millisecond} }

func (s *Invoker) Generate(ctx context.Context, cred domain.Credential, model, prompt string) (generation.Output, error) {
	if s.Latency > 0 {
		select {
		case <-ctx.Done():
			return generation.Output{}, ctx.Err()
		case <-time.After(s.Latency):
		}
	}
	if strings.HasPrefix(cred.Secret, "quota-") {
		return generation.Output{}, &generation.ProviderError{Provider: "stub", Status: 429, Message: "RESOURCE_EXHAUSTED: stub quota"}
	}
	topic := firstLine(prompt)
	text := fmt.Sprintf("# %s\n\nBu içerik %s modeli ile çevrimdışı üretildi.\n\n## Giriş\n\n%s hakkında kısa bir yazı.\n", topic, model, topic)
	return generation.Output{Text: text, Tokens: tokencount.DefaultCounter.Estimate(prompt, text, model)}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len([]rune(s)) > 80 {
		s = string([]rune(s)[:80])
	}
	return s
}
