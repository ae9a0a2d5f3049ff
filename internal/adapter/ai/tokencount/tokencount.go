// Package tokencount estimates token usage when a provider does not report it.
//
// Encodings come from tiktoken-go with the embedded offline BPE loader, so
// counting never touches the network.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Counter provides thread-safe token counting.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{encodingCache: make(map[string]*tiktoken.Tiktoken)}
}

// DefaultCounter is shared by the provider adapters.
var DefaultCounter = NewCounter()

func (c *Counter) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	name := encodingName(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[name]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodingCache[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil && name != "cl100k_base" {
		slog.Debug("falling back to cl100k_base encoding", slog.String("model", model), slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return nil, err
	}
	c.encodingCache[name] = enc
	return enc, nil
}

// encodingName picks a BPE table. Gemini tokenization is not public;
// cl100k_base is a close enough estimate for usage accounting.
func encodingName(model string) string {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}

// CountTokens counts the tokens of text for model.
func (c *Counter) CountTokens(text, model string) (int, error) {
	enc, err := c.encodingFor(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Estimate returns prompt plus completion tokens, falling back to ~4 chars per
// token when no encoding is available.
func (c *Counter) Estimate(prompt, completion, model string) int {
	p, err := c.CountTokens(prompt, model)
	if err != nil {
		slog.Debug("token count fallback", slog.String("model", model), slog.Any("error", err))
		return (len(prompt) + len(completion)) / 4
	}
	out, err := c.CountTokens(completion, model)
	if err != nil {
		return p + len(completion)/4
	}
	return p + out
}
