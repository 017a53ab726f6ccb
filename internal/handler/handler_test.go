package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lottery-storefront/internal/config"
	"github.com/iliyamo/lottery-storefront/internal/handler"
	"github.com/iliyamo/lottery-storefront/internal/middleware"
	"github.com/iliyamo/lottery-storefront/internal/model"
	"github.com/iliyamo/lottery-storefront/internal/repository"
	"github.com/iliyamo/lottery-storefront/internal/router"
	"github.com/iliyamo/lottery-storefront/internal/service"
	"github.com/iliyamo/lottery-storefront/internal/utils"
)

const (
	testSecret   = "test-secret"
	testPassword = "lottery-admin"
)

type testServer struct {
	e           *echo.Echo
	invalidated int
}

type serverOptions struct {
	clock        func() time.Time
	holdDuration time.Duration
	rdb          *redis.Client
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWith(t, serverOptions{})
}

func newTestServerWith(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	hash, err := utils.HashPassword(testPassword, 4)
	require.NoError(t, err)

	if opts.holdDuration == 0 {
		opts.holdDuration = 30 * time.Minute
	}
	var engineOpts []service.Option
	if opts.clock != nil {
		engineOpts = append(engineOpts, service.WithClock(opts.clock))
	}
	engine := service.NewHoldEngine(repository.NewMemoryStore(), opts.holdDuration, engineOpts...)
	pricing := service.NewPricingService(repository.NewMemoryPricingStore(), decimal.RequireFromString("5.00"))
	auth := service.NewAdminAuth(hash, testSecret, time.Minute)

	// Without redis both middlewares pass requests through.
	cacheCfg := config.CacheConfig{}
	if opts.rdb != nil {
		cacheCfg = config.CacheConfig{
			Enabled: true,
			Methods: map[string]bool{http.MethodGet: true},
			TTL:     5 * time.Second,
			Prefix:  "lottery:cache",
		}
	}
	purger := middleware.NewCachePurger(cacheCfg, opts.rdb)
	cache := middleware.NewRedisCache(cacheCfg, opts.rdb)
	limiter := middleware.NewTokenBucket(config.RateLimitConfig{}, nil)

	ts := &testServer{e: echo.New()}
	invalidate := func(ctx context.Context) {
		ts.invalidated++
		purger.Purge(ctx)
	}

	router.RegisterRoutes(ts.e)
	router.RegisterStorefront(ts.e, handler.NewStorefrontHandler(engine, pricing), cache, limiter)
	router.RegisterAdmin(ts.e, handler.NewAdminHandler(engine, pricing, auth, invalidate), testSecret, limiter)
	return ts
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (ts *testServer) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	rec, body := ts.do(t, http.MethodPost, "/v1/admin/login", `{"password":"`+testPassword+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	return body["access_token"].(string)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec, _ := ts.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPurchaseFlow(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/v1/purchases", `{"tickets":[42,7]}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, model.ValidReference(body["reference_id"].(string)))
	assert.Equal(t, "10.00", body["total_cost"])
	assert.Equal(t, "5.00", body["unit_price"])
	assert.NotEmpty(t, body["hold_expiry"])

	rec, body = ts.do(t, http.MethodGet, "/v1/tickets", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{float64(7), float64(42)}, body["held"])
	assert.Equal(t, []any{}, body["sold"])
	assert.Equal(t, float64(model.TicketUniverseSize-2), body["available_count"])

	rec, body = ts.do(t, http.MethodGet, "/v1/tickets/42/hold", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hold := body["hold"].(map[string]any)
	assert.Equal(t, float64(42), hold["ticket_number"])
	assert.Greater(t, hold["time_remaining_ms"].(float64), float64(0))

	rec, body = ts.do(t, http.MethodGet, "/v1/tickets/43/hold", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["hold"])

	rec, body = ts.do(t, http.MethodPost, "/v1/purchases", `{"tickets":[1,42]}`, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []any{float64(42)}, body["unavailable"])
}

func TestPurchase_badRequests(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodPost, "/v1/purchases", `{"tickets":[]}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, "/v1/purchases", `{"tickets":[10000]}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, "/v1/purchases", `not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = ts.do(t, http.MethodGet, "/v1/tickets/abc/hold", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_requiresSession(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/v1/admin/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/login", `{"password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A token signed with the right secret but another role is refused.
	tok, err := utils.NewAccessToken(testSecret, "someone", "CUSTOMER", time.Minute)
	require.NoError(t, err)
	rec, _ = ts.do(t, http.MethodGet, "/v1/admin/stats", "", tok.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_confirmReleaseAndStats(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rec, _ := ts.do(t, http.MethodPost, "/v1/purchases", `{"tickets":[1,2,3]}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := ts.do(t, http.MethodPost, "/v1/admin/tickets/1/confirm", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusSold, body["status"])

	rec, body = ts.do(t, http.MethodPost, "/v1/admin/tickets/2/release", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["released"])

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/tickets/500/confirm", "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/v1/admin/stats", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total_purchases"])
	assert.Equal(t, "15.00", body["total_revenue"])
	assert.Equal(t, float64(1), body["sold_count"])
	assert.Equal(t, float64(1), body["held_count"])

	rec, body = ts.do(t, http.MethodGet, "/v1/admin/tickets/1", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusSold, body["status"])
	assert.Equal(t, true, body["payment_confirmed"])

	rec, body = ts.do(t, http.MethodGet, "/v1/admin/tickets?search=3", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, _ = ts.do(t, http.MethodGet, "/v1/admin/tickets?search=3a", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/v1/admin/purchases", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	purchases := body["purchases"].([]any)
	require.Len(t, purchases, 1)
	status := purchases[0].(map[string]any)["payment_status"].(map[string]any)
	assert.Equal(t, map[string]any{"1": true, "2": false, "3": false}, status)

	rec, body = ts.do(t, http.MethodPost, "/v1/admin/reset", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, body = ts.do(t, http.MethodGet, "/v1/tickets", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(model.TicketUniverseSize), body["available_count"])
}

func TestAdmin_pricing(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rec, body := ts.do(t, http.MethodGet, "/v1/pricing", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5.00", body["price"])
	assert.Nil(t, body["last_updated"])

	rec, body = ts.do(t, http.MethodPut, "/v1/admin/pricing", `{"price":"7.50"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "7.50", body["price"])
	assert.Equal(t, "admin", body["updated_by"])
	assert.Equal(t, 1, ts.invalidated)

	rec, _ = ts.do(t, http.MethodPut, "/v1/admin/pricing", `{"price":0}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, ts.invalidated)

	rec, body = ts.do(t, http.MethodPost, "/v1/purchases", `{"tickets":[9,10]}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "15.00", body["total_cost"])

	rec, body = ts.do(t, http.MethodGet, "/v1/admin/pricing/history", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["history"], 1)

	rec, body = ts.do(t, http.MethodDelete, "/v1/admin/pricing", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5.00", body["price"])
}

func TestAdmin_refreshSession(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rec, body := ts.do(t, http.MethodPost, "/v1/admin/session/refresh", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["access_token"])
}

func TestAdmin_sessionInfo(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rec, body := ts.do(t, http.MethodGet, "/v1/admin/session", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", body["subject"])
	assert.Equal(t, service.RoleAdmin, body["role"])
	assert.Equal(t, float64(60), body["session_ttl_seconds"])
	remaining := body["remaining_seconds"].(float64)
	assert.Greater(t, remaining, float64(0))
	assert.LessOrEqual(t, remaining, float64(60))
	assert.NotEmpty(t, body["expires_at"])

	rec, _ = ts.do(t, http.MethodGet, "/v1/admin/session", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTicketGrid_isNotServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	ts := newTestServerWith(t, serverOptions{clock: clock.Now, holdDuration: time.Minute, rdb: rdb})

	rec, _ := ts.do(t, http.MethodPost, "/v1/purchases", `{"tickets":[5]}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	clock.Advance(59 * time.Second)
	rec, body := ts.do(t, http.MethodGet, "/v1/tickets", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{float64(5)}, body["held"])

	// The hold lapses well inside the cache TTL.
	clock.Advance(2 * time.Second)
	rec, body = ts.do(t, http.MethodGet, "/v1/tickets", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["held"])
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestPricing_cachedUntilPriceChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ts := newTestServerWith(t, serverOptions{rdb: rdb})
	token := ts.login(t)

	rec, _ := ts.do(t, http.MethodGet, "/v1/pricing", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec, body := ts.do(t, http.MethodGet, "/v1/pricing", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "5.00", body["price"])

	rec, _ = ts.do(t, http.MethodPut, "/v1/admin/pricing", `{"price":"6.00"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/v1/pricing", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "6.00", body["price"])
}

type brokenEngine struct {
	handler.TicketEngine
}

func (brokenEngine) Classify(context.Context) (model.Classification, error) {
	return model.Classification{}, &service.StorageError{Op: "classify", Err: errors.New("db down")}
}

func TestStorageFailureMapsTo503(t *testing.T) {
	e := echo.New()
	pricing := service.NewPricingService(repository.NewMemoryPricingStore(), decimal.Zero)
	h := handler.NewStorefrontHandler(brokenEngine{}, pricing)
	e.GET("/v1/tickets", h.ListTickets)

	req := httptest.NewRequest(http.MethodGet, "/v1/tickets", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}
