package keyring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

type fakeStore struct {
	creds map[string][]domain.Credential
	err   error
}

func (f *fakeStore) ListByOwnerService(_ context.Context, owner, service string) ([]domain.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.creds[owner+"/"+service], nil
}

func cred(secret string, isDefault bool) domain.Credential {
	return domain.Credential{ID: "id-" + secret, Owner: "u1", Service: domain.ServiceGemini, Secret: secret, IsDefault: isDefault}
}

func TestSelectCredential_RoundRobinVisitsEachOnce(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{creds: map[string][]domain.Credential{
		"u1/gemini": {cred("a", false), cred("b", false), cred("c", false)},
	}}
	sel := NewSelector(store, NewMemoryRegistry())

	var got []string
	for i := 0; i < 3; i++ {
		c, ok, err := sel.SelectCredential(ctx, "u1", domain.ServiceGemini)
		require.NoError(t, err)
		require.True(t, ok)
		got = append(got, c.Secret)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	// rotation wraps in the same stable order
	c, ok, err := sel.SelectCredential(ctx, "u1", domain.ServiceGemini)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", c.Secret)
}

func TestSelectCredential_DefaultComesFirst(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{creds: map[string][]domain.Credential{
		"u1/gemini": {cred("a", false), cred("b", false), cred("d", true)},
	}}
	sel := NewSelector(store, NewMemoryRegistry())

	c, ok, err := sel.SelectCredential(ctx, "u1", domain.ServiceGemini)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "d", c.Secret)
}

func TestSelectCredential_StickyExhaustion(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{creds: map[string][]domain.Credential{
		"u1/gemini": {cred("only", false)},
	}}
	sel := NewSelector(store, NewMemoryRegistry())

	require.NoError(t, sel.MarkExhausted(ctx, "u1", "only"))
	require.NoError(t, sel.MarkExhausted(ctx, "u1", "only"))

	for i := 0; i < 3; i++ {
		_, ok, err := sel.SelectCredential(ctx, "u1", domain.ServiceGemini)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestSelectCredential_ScenarioDefaultThenFallback(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{creds: map[string][]domain.Credential{
		"u1/gemini": {cred("k1", false), cred("k2", true)},
	}}
	sel := NewSelector(store, NewMemoryRegistry())

	c, ok, err := sel.SelectCredential(ctx, "u1", "gemini")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k2", c.Secret)

	require.NoError(t, sel.MarkExhausted(ctx, "u1", "k2"))
	c, ok, err = sel.SelectCredential(ctx, "u1", "gemini")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k1", c.Secret)

	require.NoError(t, sel.MarkExhausted(ctx, "u1", "k1"))
	_, ok, err = sel.SelectCredential(ctx, "u1", "gemini")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSelectCredential_ExhaustionIsPerOwner(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{creds: map[string][]domain.Credential{
		"u1/gemini": {cred("shared", false)},
		"u2/gemini": {cred("shared", false)},
	}}
	sel := NewSelector(store, NewMemoryRegistry())

	require.NoError(t, sel.MarkExhausted(ctx, "u1", "shared"))
	_, ok, err := sel.SelectCredential(ctx, "u2", "gemini")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSelectCredential_NoCredentialsAndStoreError(t *testing.T) {
	ctx := context.Background()
	sel := NewSelector(&fakeStore{}, NewMemoryRegistry())
	_, ok, err := sel.SelectCredential(ctx, "nobody", "gemini")
	require.NoError(t, err)
	assert.False(t, ok)

	boom := errors.New("db down")
	sel = NewSelector(&fakeStore{err: boom}, NewMemoryRegistry())
	_, _, err = sel.SelectCredential(ctx, "u1", "gemini")
	assert.ErrorIs(t, err, boom)
}

func TestSelector_Status(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{creds: map[string][]domain.Credential{
		"u1/gemini": {cred("k1", false), cred("k2", true), cred("k3", false)},
	}}
	sel := NewSelector(store, NewMemoryRegistry())
	require.NoError(t, sel.MarkExhausted(ctx, "u1", "k3"))

	st, err := sel.Status(ctx, "u1", "gemini")
	require.NoError(t, err)
	assert.Equal(t, Status{Service: "gemini", Total: 3, Exhausted: 1, Available: 2}, st)
}
