package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestTimeout bounds each request with a context deadline. A handler still
// running at the deadline has its context cancelled, so repository calls
// abort, and the client receives 504.
//
// WebSocket upgrades run without a deadline on the request goroutine, since
// the connection outlives the request and must be hijacked synchronously.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 || isWebSocketUpgrade(c) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() { done <- next(c) }()

			select {
			case err := <-done:
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
					return timedOut(ctx, c, timeout)
				}
				return err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return timedOut(ctx, c, timeout)
				}
				return ctx.Err()
			}
		}
	}
}

func timedOut(ctx context.Context, c echo.Context, timeout time.Duration) error {
	zerolog.Ctx(ctx).Warn().Dur("timeout", timeout).Str("path", c.Path()).Msg("request timed out")
	return echo.NewHTTPError(http.StatusGatewayTimeout, "scheduling request timed out")
}
