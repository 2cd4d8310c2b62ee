/**
 * @description
 * Distributed rate limiting for payment admission, backed by Redis. A fixed-window
 * counter per account keeps a burst of admit requests from monopolizing that
 * account's lock across every instance of the service.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client and Lua script support.
 */

package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitRateLimitScript increments the window counter and stamps the expiry in one
// round trip, so two racing instances cannot create an unexpiring key.
var admitRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisAdmitRateLimiter implements the RateLimiter interface using Redis.
type RedisAdmitRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisAdmitRateLimiter creates a limiter with the given key prefix.
func NewRedisAdmitRateLimiter(client redis.UniversalClient, prefix string) *RedisAdmitRateLimiter {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "ledger:rate_limit"
	}
	return &RedisAdmitRateLimiter{
		client: client,
		prefix: strings.TrimSuffix(trimmed, ":"),
	}
}

// ConsumeRateLimit counts one attempt for the subject within the window and
// reports the running count plus how long until the window resets. A zero limit
// or window disables the check.
func (r *RedisAdmitRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, scope, subject)
	raw, err := admitRateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(count), 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return int(count), retryAfter, nil
}
