// Package generation calls generative-AI providers while rotating an owner's API keys.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/keyring"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
)

// Output is the text a provider produced and the tokens it consumed.
type Output struct {
	Text   string
	Tokens int
}

// Invoker performs one generation call with one credential. Returned errors
// should carry the provider message and, when known, a StatusCode() int.
type Invoker interface {
	Generate(ctx context.Context, cred domain.Credential, model, prompt string) (Output, error)
}

// CredentialSelector is satisfied by *keyring.Selector.
type CredentialSelector interface {
	SelectCredential(ctx context.Context, owner, service string) (domain.Credential, bool, error)
	MarkExhausted(ctx context.Context, owner, secret string) error
}

// UsageRecorder persists successful calls.
type UsageRecorder interface {
	Record(ctx context.Context, u domain.UsageRecord) error
}

// Result describes a successful generation.
type Result struct {
	Text         string
	Service      string
	Model        string
	Tokens       int
	Attempts     int
	CredentialID string
}

// Client runs the bounded attempt loop across an owner's credentials.
type Client struct {
	selector       CredentialSelector
	invokers       map[string]Invoker
	usage          UsageRecorder
	maxAttempts    int
	attemptTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithMaxAttempts sets the attempt budget. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithAttemptTimeout bounds each provider call. Zero disables the per-attempt deadline.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) { c.attemptTimeout = d }
}

// WithUsageRecorder records usage after each success.
func WithUsageRecorder(u UsageRecorder) Option {
	return func(c *Client) { c.usage = u }
}

// New creates a Client. invokers is keyed by service name.
func New(selector CredentialSelector, invokers map[string]Invoker, opts ...Option) *Client {
	c := &Client{
		selector:       selector,
		invokers:       invokers,
		maxAttempts:    5,
		attemptTimeout: 90 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Generate produces text for prompt with the owner's keys. Quota failures mark
// the key exhausted and move on; any other failure is returned immediately.
// domain.ErrQuotaExceeded is returned when no usable key remains or the
// attempt budget is spent.
func (c *Client) Generate(ctx context.Context, owner, prompt, modelID string) (Result, error) {
	tracer := otel.Tracer("generation.client")
	ctx, span := tracer.Start(ctx, "generation.Generate")
	defer span.End()

	m, err := ResolveModel(modelID)
	if err != nil {
		return Result{}, fmt.Errorf("op=generation.Generate: %w", err)
	}
	span.SetAttributes(attribute.String("gen.service", m.Service), attribute.String("gen.model", m.Name))
	inv, ok := c.invokers[m.Service]
	if !ok {
		return Result{}, fmt.Errorf("op=generation.Generate: %w: no provider for %s", domain.ErrInvalidArgument, m.Service)
	}
	if strings.TrimSpace(prompt) == "" {
		return Result{}, fmt.Errorf("op=generation.Generate: %w: empty prompt", domain.ErrInvalidArgument)
	}

	lg := obsctx.LoggerFromContext(ctx).With(slog.String("service", m.Service), slog.String("model", m.Name))
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		cred, found, err := c.selector.SelectCredential(ctx, owner, m.Service)
		if err != nil {
			span.RecordError(err)
			return Result{}, fmt.Errorf("op=generation.Generate: %w", err)
		}
		if !found {
			observability.ObserveGeneration(m.Service, "no_credential", 0)
			lg.Warn("no usable credential left", slog.Int("attempt", attempt))
			span.SetStatus(codes.Error, "quota exceeded")
			return Result{}, fmt.Errorf("op=generation.Generate: %w", domain.ErrQuotaExceeded)
		}

		start := time.Now()
		out, err := c.invoke(ctx, inv, cred, m.Name, prompt)
		elapsed := time.Since(start)

		switch {
		case err == nil && strings.TrimSpace(out.Text) != "":
			observability.ObserveGeneration(m.Service, "success", elapsed)
			c.recordUsage(ctx, owner, m.Service, 1, out.Tokens)
			span.SetAttributes(attribute.Int("gen.attempts", attempt))
			lg.Info("generation succeeded",
				slog.Int("attempt", attempt),
				slog.String("key_suffix", cred.Masked()),
				slog.Int("tokens", out.Tokens),
				slog.Duration("elapsed", elapsed))
			return Result{
				Text:         out.Text,
				Service:      m.Service,
				Model:        m.Name,
				Tokens:       out.Tokens,
				Attempts:     attempt,
				CredentialID: cred.ID,
			}, nil
		case err == nil:
			// blank output does not say anything about the key
			observability.ObserveGeneration(m.Service, "empty", elapsed)
			lg.Warn("provider returned empty text", slog.Int("attempt", attempt), slog.String("key_suffix", cred.Masked()))
		case keyring.IsQuotaError(err):
			observability.ObserveGeneration(m.Service, "quota", elapsed)
			observability.CredentialExhausted(m.Service)
			lg.Warn("credential hit quota, rotating",
				slog.Int("attempt", attempt),
				slog.String("key_suffix", cred.Masked()),
				slog.Any("error", err))
			if merr := c.selector.MarkExhausted(ctx, owner, cred.Secret); merr != nil {
				return Result{}, fmt.Errorf("op=generation.Generate: %w", merr)
			}
		default:
			observability.ObserveGeneration(m.Service, "other", elapsed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			lg.Error("generation failed", slog.Int("attempt", attempt), slog.String("key_suffix", cred.Masked()), slog.Any("error", err))
			return Result{}, fmt.Errorf("op=generation.Generate: %w", classifyOther(err))
		}
	}
	span.SetStatus(codes.Error, "attempt budget spent")
	return Result{}, fmt.Errorf("op=generation.Generate: %w", domain.ErrQuotaExceeded)
}

func (c *Client) invoke(ctx context.Context, inv Invoker, cred domain.Credential, model, prompt string) (Output, error) {
	if c.attemptTimeout <= 0 {
		return inv.Generate(ctx, cred, model, prompt)
	}
	actx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()
	return inv.Generate(actx, cred, model, prompt)
}

func (c *Client) recordUsage(ctx context.Context, owner, service string, requests, tokens int) {
	if c.usage == nil {
		return
	}
	err := c.usage.Record(ctx, domain.UsageRecord{Owner: owner, Service: service, Requests: requests, Tokens: tokens})
	if err != nil {
		obsctx.LoggerFromContext(ctx).Warn("usage not recorded", slog.String("service", service), slog.Any("error", err))
	}
}

// classifyOther tags provider failures with a domain sentinel while keeping the cause.
func classifyOther(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
}
