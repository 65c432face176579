package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders marks every response as an uncacheable, unframeable JSON
// API response. HSTS is only sent when hsts is true, which production
// deployments behind TLS set.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			if isWebSocketUpgrade(c) {
				return next(c)
			}
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			// Schedules carry patient names.
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}

func isWebSocketUpgrade(c echo.Context) bool {
	return strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket")
}
