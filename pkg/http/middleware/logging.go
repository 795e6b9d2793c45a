package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"MarketBrain/pkg/logger"
)

// RequestLogging writes one line per request: ERROR for 5xx, WARN when
// slower than slowThreshold, DEBUG otherwise. A zero threshold disables the
// slow warning. Websocket sessions are never reported as slow.
func RequestLogging(l *logger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	if l == nil {
		l = logger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			res := c.Response()
			fields := []logger.Field{
				logger.String("method", c.Request().Method),
				logger.String("route", routeOf(c)),
				logger.String("remote", c.RealIP()),
				logger.Int("status", res.Status),
				logger.Duration("duration_ms", elapsed),
				logger.Int64("bytes", res.Size),
			}
			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slowThreshold > 0 && elapsed >= slowThreshold && !isWebsocket(c):
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return err
		}
	}
}
