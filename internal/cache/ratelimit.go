package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitIPPrefix = "ratelimit:ip:"
	rateLimitIPTTL    = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes a token atomically.
// Time is passed in milliseconds so sub-second refills are not lost.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now_ms = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'updated_ms')
	local tokens = tonumber(state[1]) or burst
	local updated_ms = tonumber(state[2]) or now_ms

	local elapsed = math.max(0, now_ms - updated_ms) / 1000
	tokens = math.min(burst, tokens + elapsed * rate)

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'updated_ms', now_ms)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckIPRateLimit consumes one token from the bucket of a client IP.
// Redis errors fail open: the request is allowed.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	now := time.Now()
	open := &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   now.Add(time.Second),
	}
	if ratePerSecond <= 0 {
		return open, nil
	}

	key := rateLimitIPPrefix + hashKey(ip)
	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		ratePerSecond, burst, now.UnixMilli(), int(rateLimitIPTTL.Seconds()),
	).Int64Slice()
	if err != nil || len(result) != 3 {
		return open, nil
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Remaining:  result[2],
		ResetAt:    now.Add(time.Second / time.Duration(ratePerSecond)),
		RetryAfter: time.Duration(result[1]) * time.Second,
	}, nil
}
