package middleware

import (
	"time"

	applogger "SensorPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging writes one debug entry per request, tagged with the X-Request-ID
// set by echo's RequestID middleware when present.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			if l == nil {
				return nil
			}
			req, res := c.Request(), c.Response()
			l.Debug("http request",
				applogger.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", res.Status),
				applogger.Int64("bytes", res.Size),
				applogger.Duration("duration_ms", time.Since(start)),
			)
			return nil
		}
	}
}
