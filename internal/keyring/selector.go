package keyring

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
)

// CredentialLister lists the credentials an owner holds for a service.
type CredentialLister interface {
	ListByOwnerService(ctx context.Context, owner, service string) ([]domain.Credential, error)
}

// Selector picks the next usable credential for an owner.
type Selector struct {
	store    CredentialLister
	registry QuotaRegistry
}

// NewSelector wires a Selector to its credential store and quota registry.
func NewSelector(store CredentialLister, registry QuotaRegistry) *Selector {
	return &Selector{store: store, registry: registry}
}

// SelectCredential returns the next non-exhausted credential, defaults first,
// rotating on every call. ok is false when none is usable.
func (s *Selector) SelectCredential(ctx context.Context, owner, service string) (domain.Credential, bool, error) {
	creds, err := s.store.ListByOwnerService(ctx, owner, service)
	if err != nil {
		return domain.Credential{}, false, fmt.Errorf("op=keyring.SelectCredential: %w", err)
	}
	if len(creds) == 0 {
		return domain.Credential{}, false, nil
	}
	candidates, err := s.usable(ctx, owner, creds)
	if err != nil {
		return domain.Credential{}, false, err
	}
	if len(candidates) == 0 {
		return domain.Credential{}, false, nil
	}
	idx, err := s.registry.Advance(ctx, owner, service, len(candidates))
	if err != nil {
		return domain.Credential{}, false, fmt.Errorf("op=keyring.SelectCredential: %w", err)
	}
	picked := candidates[idx]
	obsctx.LoggerFromContext(ctx).Debug("credential selected",
		slog.String("service", service),
		slog.Int("index", idx),
		slog.Int("candidates", len(candidates)),
		slog.String("key_suffix", picked.Masked()))
	return picked, true, nil
}

// usable drops exhausted credentials and stable-sorts defaults first.
func (s *Selector) usable(ctx context.Context, owner string, creds []domain.Credential) ([]domain.Credential, error) {
	exhausted, err := s.registry.Exhausted(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("op=keyring.SelectCredential: %w", err)
	}
	out := make([]domain.Credential, 0, len(creds))
	for _, c := range creds {
		if _, gone := exhausted[Fingerprint(c.Secret)]; gone {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsDefault && !out[j].IsDefault })
	return out, nil
}

// MarkExhausted blocks secret for owner. Idempotent.
func (s *Selector) MarkExhausted(ctx context.Context, owner, secret string) error {
	if err := s.registry.MarkExhausted(ctx, owner, Fingerprint(secret)); err != nil {
		return fmt.Errorf("op=keyring.MarkExhausted: %w", err)
	}
	return nil
}

// Status summarises an owner's credentials for one service.
type Status struct {
	Service   string `json:"service"`
	Total     int    `json:"total"`
	Exhausted int    `json:"exhausted"`
	Available int    `json:"available"`
}

// Status reports how many of the owner's credentials are still usable.
func (s *Selector) Status(ctx context.Context, owner, service string) (Status, error) {
	creds, err := s.store.ListByOwnerService(ctx, owner, service)
	if err != nil {
		return Status{}, fmt.Errorf("op=keyring.Status: %w", err)
	}
	usable, err := s.usable(ctx, owner, creds)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Service:   service,
		Total:     len(creds),
		Exhausted: len(creds) - len(usable),
		Available: len(usable),
	}, nil
}
