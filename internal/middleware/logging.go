package middleware

import (
	"time"

	"go-firestore-admin/internal/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogger logs one line per request with the request-scoped logger.
func RequestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			// let the error handler write the status before it is logged
			c.Error(err)
		}

		req := c.Request()
		l := logger.FromContext(req.Context())
		e := l.Info()
		if err != nil {
			e = l.Error().Err(err)
		}
		e.Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", c.Response().Status).
			Dur("latency", time.Since(start)).
			Str("ip", c.RealIP()).
			Msg("http request")

		return nil
	}
}
