package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                                   // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp" // Prometheus scrape handler

	"github.com/iliyamo/lottery-storefront/internal/handler" // import the handlers that implement the storefront
)

// RegisterRoutes registers the operational routes that do not belong to
// the storefront itself: a health check for load balancers and the
// Prometheus metrics endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
