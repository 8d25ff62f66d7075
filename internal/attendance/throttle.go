package attendance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Throttle decides whether an opportunistic sweep may run now.
type Throttle interface {
	Allow(ctx context.Context, now time.Time) bool
}

// LocalThrottle admits at most one caller per cooldown within a process.
type LocalThrottle struct {
	cooldown time.Duration
	last     atomic.Int64 // unix nanos of the last admitted run
}

// NewLocalThrottle creates a process-local throttle.
func NewLocalThrottle(cooldown time.Duration) *LocalThrottle {
	return &LocalThrottle{cooldown: cooldown}
}

// Allow marks now as the last run when the cooldown has passed.
func (t *LocalThrottle) Allow(_ context.Context, now time.Time) bool {
	for {
		last := t.last.Load()
		if last != 0 && now.UnixNano()-last < int64(t.cooldown) {
			return false
		}
		if t.last.CompareAndSwap(last, now.UnixNano()) {
			return true
		}
	}
}

// RedisThrottle shares the cooldown between processes with SET NX.
type RedisThrottle struct {
	client   *redis.Client
	key      string
	cooldown time.Duration
	fallback *LocalThrottle
}

// NewRedisThrottle builds a throttle keyed on key. When Redis is unreachable
// it degrades to a local throttle.
func NewRedisThrottle(client *redis.Client, key string, cooldown time.Duration) *RedisThrottle {
	if key == "" {
		key = "rollcall:sweep:last"
	}
	return &RedisThrottle{
		client:   client,
		key:      key,
		cooldown: cooldown,
		fallback: NewLocalThrottle(cooldown),
	}
}

func (t *RedisThrottle) Allow(ctx context.Context, now time.Time) bool {
	ok, err := t.client.SetNX(ctx, t.key, now.UTC().Format(time.RFC3339), t.cooldown).Result()
	if err != nil {
		log.Warn().Err(err).Msg("sweep throttle: redis unavailable, using local cooldown")
		return t.fallback.Allow(ctx, now)
	}
	return ok
}
