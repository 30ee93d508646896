package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/majdamija123/medconnect-backend/internal/platform/auth"
)

// Logger emits one structured line per request after the handler returns.
// Failed requests log at error level with the handler's error attached. When
// the request carries an authenticated identity, its role is included so
// doctor and patient traffic can be told apart in the logs.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			evt = evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Int64("bytes_out", c.Response().Size).
				Dur("duration", time.Since(start)).
				Str("remote_ip", c.RealIP())

			if q := req.URL.RawQuery; q != "" {
				evt = evt.Str("query", q)
			}
			if id, ok := auth.IdentityFromContext(req.Context()); ok {
				evt = evt.Str("role", string(id.Role))
			}

			evt.Msg("request handled")
			return err
		}
	}
}
