package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lottery-storefront/internal/handler"
)

// RegisterStorefront registers the public storefront under /v1.  The
// pricing read sits behind the response cache and checkout behind the rate
// limiter.  Either middleware may be a pass-through when Redis is not
// configured.
func RegisterStorefront(e *echo.Echo, h *handler.StorefrontHandler, cache, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")

	// The grid is never cached: a hold that lapses must leave the held set
	// on the next read, not when a cache entry expires.
	g.GET("/tickets", h.ListTickets)
	g.GET("/tickets/:number/hold", h.GetHold)
	g.GET("/pricing", h.GetPricing, cache)

	g.POST("/purchases", h.Purchase, limiter)
}
