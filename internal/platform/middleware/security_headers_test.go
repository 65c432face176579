package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runSecurityHeaders(t *testing.T, hsts bool, req *http.Request, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return rec, SecurityHeaders(hsts)(handler)(c)
}

func TestSecurityHeaders_APIResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	rec, err := runSecurityHeaders(t, false, req, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("header %s: got %q, want %q", header, got, want)
		}
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no HSTS outside production, got %q", got)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec, _ := runSecurityHeaders(t, true, req, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("unexpected HSTS header %q", got)
	}
}

func TestSecurityHeaders_WebSocketUpgrade(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	rec, _ := runSecurityHeaders(t, false, req, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if rec.Header().Get("Content-Security-Policy") != "" || rec.Header().Get("Cache-Control") != "" {
		t.Error("document headers should not be set on an upgrade")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff on every response")
	}
}

func TestSecurityHeaders_PropagatesHandlerError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/x", nil)
	rec, err := runSecurityHeaders(t, false, req, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	})
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected headers to be set even when handler fails")
	}
}
