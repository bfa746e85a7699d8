package queue

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

const waitPollInterval = 50 * time.Millisecond

// rateLimiter is a queue-wide sliding-window limit shared by every worker process.
type rateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
	key    string
	limit  int
	window time.Duration
}

func (b *Broker) newRateLimiter(queue string, limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		rdb:    b.rdb,
		script: redis.NewScript(slidingWindowLua),
		key:    b.keys(queue).rateLimit(),
		limit:  limit,
		window: window,
	}
}

func (rl *rateLimiter) allow(ctx context.Context) (bool, error) {
	result, err := rl.script.Run(ctx, rl.rdb,
		[]string{rl.key},
		time.Now().UnixMicro(),
		rl.window.Microseconds(),
		rl.limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", rl.key, err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("redis: rate limit %s: unexpected result length %d", rl.key, len(result))
	}
	return result[0] == 1, nil
}

// wait blocks until a slot in the window is free.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		allowed, err := rl.allow(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
