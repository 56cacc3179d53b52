// Package ratelimit provides a Redis-backed sliding-window implementation
// of the auth.RateLimiter interface.
//
// Each key maps to a sorted set of event timestamps. A check prunes entries
// older than the window, counts the remainder, and records the new event
// only when the budget allows it. Counters are shared across processes, so
// every check reflects global state at call time.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/castellan/auth"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures so callers can distinguish
// an unreachable counter from an exhausted budget.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultKeyPrefix = "rl:"

// slidingWindow prunes, counts, and conditionally records in one atomic
// step, so concurrent checks against the same key cannot all observe the
// same count and overrun the budget.
//
// KEYS[1] window key
// ARGV[1] window start (ms score, inclusive prune cutoff)
// ARGV[2] budget
// ARGV[3] event score (ms)
// ARGV[4] event member
// ARGV[5] key TTL (ms)
var slidingWindow = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '0', ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisLimiter enforces sliding-window budgets using Redis sorted sets.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	clock  auth.Clock
}

// New creates a RedisLimiter backed by the given Redis client.
func New(redisClient redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{
		redis:  redisClient,
		prefix: defaultKeyPrefix,
		clock:  auth.SystemClock(),
	}
}

// WithPrefix overrides the key namespace shared with other Redis users.
func (l *RedisLimiter) WithPrefix(prefix string) *RedisLimiter {
	if prefix != "" {
		l.prefix = prefix
	}
	return l
}

func (l *RedisLimiter) WithClock(clock auth.Clock) *RedisLimiter {
	if clock != nil {
		l.clock = clock
	}
	return l
}

// IsAllowed reports whether one more event fits the budget and, if so,
// records it. A denied check records nothing, so being throttled does not
// extend the throttle. The decision runs as one script evaluation on the
// Redis side.
func (l *RedisLimiter) IsAllowed(ctx context.Context, key string, limit auth.Limit) (bool, error) {
	if limit.Events <= 0 || limit.Window <= 0 {
		return true, nil
	}

	now := l.clock.Now()
	windowStart := now.Add(-limit.Window)

	// Scores are milliseconds: they fit a Redis double exactly, where
	// nanoseconds would not. Member uniqueness comes from the uuid, so
	// concurrent callers sharing a timestamp never collide.
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()

	admitted, err := slidingWindow.Run(ctx, l.redis, []string{l.prefix + key},
		windowStart.UnixMilli(),
		limit.Events,
		now.UnixMilli(),
		member,
		limit.Window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return admitted == 1, nil
}

// Reset clears the counter for a key. Called after successful logins so
// prior failed-attempt pressure does not linger.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

var _ auth.RateLimiter = (*RedisLimiter)(nil)
