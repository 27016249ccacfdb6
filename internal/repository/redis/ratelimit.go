package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter counts requests per client in fixed one-minute windows
type RateLimiter struct {
	client            *Client
	prefix            string
	requestsPerMinute int
	burst             int
	now               func() time.Time
}

// NewRateLimiter creates a rate limiter. keyPrefix namespaces the counters
// next to the session keys.
func NewRateLimiter(client *Client, keyPrefix string, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:            client,
		prefix:            keyPrefix + rateLimitPrefix,
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
		now:               time.Now,
	}
}

// Allow records a request for key.
// Returns (allowed, remaining, resetTime, error)
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	windowStart := r.now().Truncate(time.Minute)
	windowEnd := windowStart.Add(time.Minute)
	fullKey := fmt.Sprintf("%s%s:%d", r.prefix, key, windowStart.Unix())

	pipe := r.client.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, time.Minute)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, time.Time{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := incrCmd.Val()
	limit := int64(r.requestsPerMinute + r.burst)
	remaining := max(int(limit-count), 0)

	return count <= limit, remaining, windowEnd, nil
}

// Limit returns the request ceiling of one window
func (r *RateLimiter) Limit() int {
	return r.requestsPerMinute + r.burst
}
