package keyring

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// advanceScript moves the cursor atomically; a missing key counts as -1.
const advanceScript = `
local last = tonumber(redis.call("GET", KEYS[1]) or "-1")
local count = tonumber(ARGV[1])
local nxt = (last + 1) % count
redis.call("SET", KEYS[1], tostring(nxt))
return nxt
`

// RedisRegistry shares exhaustion state and cursors between instances.
// Exhausted fingerprints live in a sorted set per owner scored by mark time.
type RedisRegistry struct {
	rdb     redis.UniversalClient
	prefix  string
	ttl     time.Duration
	now     func() time.Time
	advance *redis.Script
}

// NewRedisRegistry creates a registry on rdb. ttl of zero keeps marks forever.
func NewRedisRegistry(rdb redis.UniversalClient, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{
		rdb:     rdb,
		prefix:  "keyring:",
		ttl:     ttl,
		now:     time.Now,
		advance: redis.NewScript(advanceScript),
	}
}

func (r *RedisRegistry) exhaustedKey(owner string) string {
	return r.prefix + "exhausted:" + owner
}

func (r *RedisRegistry) cursorKey(owner, service string) string {
	return r.prefix + "cursor:" + owner + ":" + service
}

func (r *RedisRegistry) Exhausted(ctx context.Context, owner string) (map[string]struct{}, error) {
	key := r.exhaustedKey(owner)
	if err := r.prune(ctx, key); err != nil {
		return nil, fmt.Errorf("op=keyring.redis.Exhausted: %w", err)
	}
	members, err := r.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("op=keyring.redis.Exhausted: %w", err)
	}
	out := make(map[string]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}
	return out, nil
}

// prune drops marks older than the TTL.
func (r *RedisRegistry) prune(ctx context.Context, key string) error {
	if r.ttl <= 0 {
		return nil
	}
	cutoff := r.now().Add(-r.ttl).UnixMilli()
	return r.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err()
}

func (r *RedisRegistry) MarkExhausted(ctx context.Context, owner, fingerprint string) error {
	key := r.exhaustedKey(owner)
	if err := r.prune(ctx, key); err != nil {
		return fmt.Errorf("op=keyring.redis.MarkExhausted: %w", err)
	}
	err := r.rdb.ZAddNX(ctx, key, redis.Z{Score: float64(r.now().UnixMilli()), Member: fingerprint}).Err()
	if err != nil {
		return fmt.Errorf("op=keyring.redis.MarkExhausted: %w", err)
	}
	if r.ttl > 0 {
		// the whole set can go once its newest mark has expired
		if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
			return fmt.Errorf("op=keyring.redis.MarkExhausted: %w", err)
		}
	}
	return nil
}

func (r *RedisRegistry) Advance(ctx context.Context, owner, service string, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}
	n, err := r.advance.Run(ctx, r.rdb, []string{r.cursorKey(owner, service)}, count).Int()
	if err != nil {
		return 0, fmt.Errorf("op=keyring.redis.Advance: %w", err)
	}
	return n, nil
}
