package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lottery-storefront/internal/config"
)

func TestTokenBucket_scopesAreIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bucket := func(scope string) echo.MiddlewareFunc {
		return NewTokenBucket(config.RateLimitConfig{
			Enabled:        true,
			Scope:          scope,
			Capacity:       2,
			RefillTokens:   1,
			RefillInterval: time.Hour,
			TTL:            time.Hour,
			Prefix:         "test:rl",
		}, rdb)
	}
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.POST("/login", ok, bucket(config.RateScopeLogin))
	e.POST("/purchases", ok, bucket(config.RateScopePurchase))

	post := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, post("/login", "10.0.0.1").Code)
	rec := post("/login", "10.0.0.1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = post("/login", "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another scope and another client each have a full bucket.
	assert.Equal(t, http.StatusNoContent, post("/purchases", "10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, post("/login", "10.0.0.2").Code)

	assert.True(t, mr.Exists("test:rl:login:10.0.0.1"))
	assert.True(t, mr.Exists("test:rl:purchase:10.0.0.1"))
}

func TestTokenBucket_withoutRedisPassesThrough(t *testing.T) {
	e := echo.New()
	e.POST("/purchases", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/purchases", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
