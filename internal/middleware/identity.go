package middleware

// identity.go defines helper functions shared across middleware files and
// handlers.  Subject pulls the session subject that JWTAuth stored in the
// Echo context.  When no session is present, "anon" is returned.

import (
	"github.com/labstack/echo/v4"
)

// Subject returns the authenticated subject, or "anon" for public
// requests.
func Subject(c echo.Context) string {
	if v := c.Get("user_id"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anon"
}
