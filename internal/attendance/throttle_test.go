package attendance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisThrottleFallsBackWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	th := NewRedisThrottle(client, "", time.Hour)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, th.Allow(ctx, t0))
	assert.False(t, th.Allow(ctx, t0.Add(time.Minute)), "local cooldown applies")
	assert.True(t, th.Allow(ctx, t0.Add(2*time.Hour)))
}

func TestLocalThrottle(t *testing.T) {
	ctx := context.Background()
	th := NewLocalThrottle(time.Hour)
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, th.Allow(ctx, t0))
	assert.False(t, th.Allow(ctx, t0.Add(30*time.Minute)))
	assert.True(t, th.Allow(ctx, t0.Add(61*time.Minute)))
}

func TestLocalThrottleAdmitsOneConcurrentCaller(t *testing.T) {
	ctx := context.Background()
	th := NewLocalThrottle(time.Minute)
	now := time.Now()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if th.Allow(ctx, now) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}
