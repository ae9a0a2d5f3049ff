package keyring

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

func newTestRedisRegistry(t *testing.T, ttl time.Duration) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRegistry(rdb, ttl), mr
}

func TestRedisRegistry_AdvanceIsAtomicCursor(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedisRegistry(t, 0)

	var got []int
	for i := 0; i < 4; i++ {
		n, err := r.Advance(ctx, "u1", "gemini", 2)
		require.NoError(t, err)
		got = append(got, n)
	}
	assert.Equal(t, []int{0, 1, 0, 1}, got)

	v, err := mr.Get("keyring:cursor:u1:gemini")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestRedisRegistry_MarkAndList(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedisRegistry(t, 0)

	require.NoError(t, r.MarkExhausted(ctx, "u1", "fp1"))
	require.NoError(t, r.MarkExhausted(ctx, "u1", "fp1"))
	require.NoError(t, r.MarkExhausted(ctx, "u1", "fp2"))

	set, err := r.Exhausted(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.Contains(t, set, "fp1")

	other, err := r.Exhausted(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.Equal(t, time.Duration(0), mr.TTL("keyring:exhausted:u1"))
}

func TestRedisRegistry_TTLPrunesOldMarks(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedisRegistry(t, time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	require.NoError(t, r.MarkExhausted(ctx, "u1", "old"))
	now = now.Add(30 * time.Minute)
	require.NoError(t, r.MarkExhausted(ctx, "u1", "new"))
	assert.Equal(t, time.Hour, mr.TTL("keyring:exhausted:u1"))

	now = now.Add(31 * time.Minute)
	set, err := r.Exhausted(ctx, "u1")
	require.NoError(t, err)
	assert.NotContains(t, set, "old")
	assert.Contains(t, set, "new")
}

func TestRedisRegistry_WithSelector(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRedisRegistry(t, 0)
	store := &fakeStore{creds: map[string][]domain.Credential{
		"u1/gemini": {cred("k1", false), cred("k2", true)},
	}}
	sel := NewSelector(store, r)

	c, ok, err := sel.SelectCredential(ctx, "u1", "gemini")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k2", c.Secret)

	require.NoError(t, sel.MarkExhausted(ctx, "u1", "k2"))
	c, ok, err = sel.SelectCredential(ctx, "u1", "gemini")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k1", c.Secret)

	// a second selector on the same store shares the state
	sel2 := NewSelector(store, r)
	require.NoError(t, sel2.MarkExhausted(ctx, "u1", "k1"))
	_, ok, err = sel.SelectCredential(ctx, "u1", "gemini")
	require.NoError(t, err)
	assert.False(t, ok)
}
