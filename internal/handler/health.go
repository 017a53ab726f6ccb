package handler // declare the package name; contains HTTP handlers

import (
	"net/http" // net/http provides status codes and response helpers

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is the liveness endpoint used by load balancers and monitoring
// systems.  It only proves the process is serving HTTP; it does not touch
// storage, so a database outage shows up as 503s on the storefront
// endpoints rather than as a failing health check.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
