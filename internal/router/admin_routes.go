package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lottery-storefront/internal/handler"
	"github.com/iliyamo/lottery-storefront/internal/middleware"
	"github.com/iliyamo/lottery-storefront/internal/service"
)

// RegisterAdmin registers the admin dashboard endpoints.  Login is public
// and rate limited; everything else under /v1/admin requires a valid
// session token carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	e.POST("/v1/admin/login", h.Login, limiter)

	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(service.RoleAdmin),
	)
	g.GET("/session", h.Session)
	g.POST("/session/refresh", h.RefreshSession)

	g.POST("/tickets/:number/confirm", h.ConfirmTicket)
	g.POST("/tickets/:number/release", h.ReleaseTicket)
	g.GET("/tickets/:number", h.GetTicket)
	g.GET("/tickets", h.SearchTickets)

	g.POST("/holds/cleanup", h.CleanupHolds)
	g.POST("/reset", h.Reset)
	g.GET("/purchases", h.ListPurchases)
	g.GET("/stats", h.Stats)

	g.PUT("/pricing", h.SetPrice)
	g.GET("/pricing/history", h.PricingHistory)
	g.DELETE("/pricing", h.ResetPricing)
}
