package idempotency

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/auth"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	maxKeyLength   = 255
)

type captureWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w *captureWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func (w *captureWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// storable reports whether a response should be replayed for a repeated key.
// Conflicts are kept so a retried booking sees the same answer.
func storable(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusConflict
}

// Middleware replays the stored response for a POST whose Idempotency-Key
// was seen before. Keys are scoped to the caller and route.
func Middleware(store Store, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			raw := req.Header.Get(HeaderKey)
			if req.Method != http.MethodPost || raw == "" {
				return next(c)
			}
			if len(raw) > maxKeyLength {
				return echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key is too long")
			}

			key := auth.UserIDFromContext(req.Context()) + "|" + req.Method + " " + req.URL.Path + "|" + raw
			ctx := req.Context()

			if stored, ok, err := store.Get(ctx, key); err != nil {
				logger.Warn().Err(err).Msg("idempotency lookup failed")
			} else if ok {
				c.Response().Header().Set(HeaderReplayed, "true")
				return c.Blob(stored.Status, stored.ContentType, stored.Body)
			}

			body := new(bytes.Buffer)
			res := c.Response()
			res.Writer = &captureWriter{Writer: io.MultiWriter(res.Writer, body), ResponseWriter: res.Writer}

			if err := next(c); err != nil {
				return err
			}

			if res.Committed && storable(res.Status) {
				resp := &Response{
					Status:      res.Status,
					ContentType: res.Header().Get(echo.HeaderContentType),
					Body:        body.Bytes(),
				}
				if err := store.Set(ctx, key, resp); err != nil {
					logger.Warn().Err(err).Msg("idempotency store failed")
				}
			}
			return nil
		}
	}
}
