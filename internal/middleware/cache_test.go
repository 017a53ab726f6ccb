package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lottery-storefront/internal/config"
	"github.com/iliyamo/lottery-storefront/internal/logging"
)

func TestPayloadEncoding(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"sold":[]}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, gotHdr)
	assert.Equal(t, `{"sold":[]}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestCacheKey_dependsOnQuery(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "lottery:cache"}
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/tickets")
		return cacheKeyFrom(cfg, c)
	}
	assert.Equal(t, key("/v1/tickets?a=1"), key("/v1/tickets?a=1"))
	assert.NotEqual(t, key("/v1/tickets?a=1"), key("/v1/tickets?a=2"))
	assert.Contains(t, key("/v1/tickets"), "lottery:cache:")
}

func TestCachePurger_disabledIsNoop(t *testing.T) {
	NewCachePurger(config.CacheConfig{}, nil).Purge(context.Background())
	var p *CachePurger
	p.Purge(context.Background())
}

func TestRequestLogger_correlationID(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger())
	var seen string
	e.GET("/ok", func(c echo.Context) error {
		seen = logging.CorrelationIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	e.GET("/fail", func(c echo.Context) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(logging.CorrelationIDHeader, "abc")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get(logging.CorrelationIDHeader))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(logging.CorrelationIDHeader))
}
