// Package keyring selects API credentials round-robin and tracks quota exhaustion.
package keyring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// QuotaRegistry holds per-owner exhaustion state and round-robin cursors.
// Secrets are identified by Fingerprint so raw keys never reach shared stores.
type QuotaRegistry interface {
	// Exhausted returns the fingerprints currently exhausted for owner.
	Exhausted(ctx context.Context, owner string) (map[string]struct{}, error)
	// MarkExhausted records fingerprint as exhausted for owner. Idempotent.
	MarkExhausted(ctx context.Context, owner, fingerprint string) error
	// Advance moves the (owner, service) cursor to (last+1) mod count and returns it.
	Advance(ctx context.Context, owner, service string, count int) (int, error)
}

// Fingerprint returns a stable non-reversible identifier for a secret.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:12])
}

type cursorKey struct {
	owner, service string
}

// MemoryRegistry is a process-local QuotaRegistry.
type MemoryRegistry struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	exhausted map[string]map[string]time.Time
	cursors   map[cursorKey]int
}

// MemoryOption configures a MemoryRegistry.
type MemoryOption func(*MemoryRegistry)

// WithTTL expires exhaustion marks after d. Zero keeps them for the registry lifetime.
func WithTTL(d time.Duration) MemoryOption {
	return func(r *MemoryRegistry) { r.ttl = d }
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRegistry) { r.now = now }
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry(opts ...MemoryOption) *MemoryRegistry {
	r := &MemoryRegistry{
		now:       time.Now,
		exhausted: map[string]map[string]time.Time{},
		cursors:   map[cursorKey]int{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *MemoryRegistry) Exhausted(_ context.Context, owner string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]struct{}{}
	marks := r.exhausted[owner]
	now := r.now()
	for fp, at := range marks {
		if r.expired(at, now) {
			delete(marks, fp)
			continue
		}
		out[fp] = struct{}{}
	}
	return out, nil
}

func (r *MemoryRegistry) MarkExhausted(_ context.Context, owner, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	marks, ok := r.exhausted[owner]
	if !ok {
		marks = map[string]time.Time{}
		r.exhausted[owner] = marks
	}
	now := r.now()
	if at, ok := marks[fingerprint]; ok && !r.expired(at, now) {
		return nil
	}
	marks[fingerprint] = now
	return nil
}

func (r *MemoryRegistry) Advance(_ context.Context, owner, service string, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := cursorKey{owner, service}
	last, ok := r.cursors[k]
	if !ok {
		last = -1
	}
	next := (last + 1) % count
	r.cursors[k] = next
	return next, nil
}

func (r *MemoryRegistry) expired(at, now time.Time) bool {
	return r.ttl > 0 && now.Sub(at) >= r.ttl
}
