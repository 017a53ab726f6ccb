package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/lottery-storefront/internal/config"
	"github.com/iliyamo/lottery-storefront/internal/logging"
)

// tokenBucketScript refills and takes one token from the bucket at
// KEYS[1] in a single round trip.  It returns {allowed, tokens left,
// milliseconds until the next refill}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])
	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + intervals * refill_tokens)
		last_refill = last_refill + intervals * interval_ms
	end

	local allowed = 0
	local retry_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)
	return { allowed, tokens, retry_ms }
`)

type bucketDecision struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
}

// NewTokenBucket limits one scope of endpoints (checkout or admin login)
// per client IP with a Redis token bucket shared by every instance.  When
// Redis is unavailable requests pass through unthrottled.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := rateKey(cfg, c)

			d, err := takeToken(ctx, rdb, cfg, key, time.Now())
			if err != nil {
				if cfg.Debug {
					logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("[ratelimit] redis error")
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if d.allowed {
				return next(c)
			}

			secs := int(math.Ceil(d.retryAfter.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			logging.FromContext(ctx).WithField("scope", cfg.Scope).WithField("ip", c.RealIP()).Info("rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too many requests, try again later",
				"retry_after": secs,
			})
		}
	}
}

func takeToken(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string, now time.Time) (bucketDecision, error) {
	vals, err := tokenBucketScript.Run(ctx, rdb, []string{key},
		now.UnixMilli(),
		cfg.Capacity,
		cfg.RefillTokens,
		cfg.RefillInterval.Milliseconds(),
		int64(cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketDecision{}, err
	}
	if len(vals) != 3 {
		return bucketDecision{}, fmt.Errorf("unexpected token bucket result %v", vals)
	}
	return bucketDecision{
		allowed:    vals[0] == 1,
		remaining:  vals[1],
		retryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// rateKey is <prefix>:<scope>:<client ip>.  There are no user accounts, so
// the IP is the only client identity available.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return cfg.Prefix + ":" + cfg.Scope + ":" + ip
}
