package research

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
)

// RateLimiter is a Redis-backed sliding-window limiter keyed by
// research_client_type, so limits hold across process restarts and multiple
// service replicas rather than resetting per-process like an in-memory
// token bucket would.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter builds a RateLimiter allowing limit calls per window for
// any given client type.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// slidingWindowScript evicts entries older than the window, counts what
// remains, and — only if under limit — records this call, all in one round
// trip so concurrent callers racing the same key can't both observe room
// under the limit.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window_ms)
local count = redis.call("ZCARD", key)
if count >= limit then
  return 0
end
redis.call("ZADD", key, now, now .. "-" .. tostring(math.random()))
redis.call("PEXPIRE", key, window_ms)
return 1
`)

// Allow reports whether a call for clientType is permitted under the
// configured rate, recording the call if so.
func (l *RateLimiter) Allow(ctx context.Context, clientType string) (bool, error) {
	key := fmt.Sprintf("research:ratelimit:%s", clientType)
	now := time.Now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.client, []string{key}, now, l.window.Milliseconds(), l.limit).Int()
	if err != nil {
		return false, sharederrors.NetworkError("rate limiter check", "redis", err)
	}
	return res == 1, nil
}

// Wait blocks, polling Allow, until a call for clientType is permitted or
// ctx is canceled.
func (l *RateLimiter) Wait(ctx context.Context, clientType string) error {
	for {
		ok, err := l.Allow(ctx, clientType)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
