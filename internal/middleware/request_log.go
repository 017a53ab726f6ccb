package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lottery-storefront/internal/logging"
)

// RequestLogger assigns every request a correlation id (reusing an
// incoming Correlation-ID header), stores a tagged logrus entry in the
// request context and logs one line per request once it completes.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx, id := logging.WithCorrelationID(req.Context(), req.Header.Get(logging.CorrelationIDHeader))
			c.SetRequest(req.WithContext(ctx))
			c.Response().Header().Set(logging.CorrelationIDHeader, id)

			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo render the error so the logged status is final.
				c.Error(err)
			}

			status := c.Response().Status
			entry := logging.FromContext(ctx).WithFields(logrus.Fields{
				"method":     req.Method,
				"path":       c.Path(),
				"status":     status,
				"latency_ms": time.Since(start).Milliseconds(),
			})
			switch {
			case status >= 500:
				entry.WithError(err).Error("request failed")
			case status >= 400:
				entry.Info("request rejected")
			default:
				entry.Debug("request served")
			}
			return nil
		}
	}
}
