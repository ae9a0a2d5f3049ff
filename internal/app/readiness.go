package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Pinger is implemented by the pgx pool and the Kafka producer.
type Pinger interface{ Ping(ctx context.Context) error }

// RedisPingResult is the minimal return type of a Redis client's Ping.
type RedisPingResult interface{ Err() error }

// RedisClient is the minimal interface for a Redis client needed for readiness.
type RedisClient interface{ Ping(ctx context.Context) RedisPingResult }

// BuildReadinessChecks returns the /readyz checks. The database is always
// required; redis and kafka are checked only when configured.
func BuildReadinessChecks(pool Pinger, rdb RedisClient, kafka Pinger) map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"db": func(ctx context.Context) error {
			if pool == nil {
				return fmt.Errorf("db not configured")
			}
			return pool.Ping(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if kafka != nil {
		checks["kafka"] = kafka.Ping
	}
	return checks
}

type redisAdapter struct{ c redis.UniversalClient }

func (a redisAdapter) Ping(ctx context.Context) RedisPingResult { return a.c.Ping(ctx) }

// WrapRedis adapts a go-redis client; it returns nil for a nil client.
func WrapRedis(c redis.UniversalClient) RedisClient {
	if c == nil {
		return nil
	}
	return redisAdapter{c: c}
}
