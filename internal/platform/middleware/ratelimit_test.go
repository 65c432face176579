package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/auth"
)

func rateLimitedRequest(h echo.HandlerFunc, ip string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil)
	req.Header.Set("X-Real-IP", ip)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h(c)
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec, err := rateLimitedRequest(h, "10.0.0.1")
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1" {
			t.Errorf("expected X-RateLimit-Limit 1, got %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := rateLimitedRequest(h, "10.0.0.2"); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	rec, err := rateLimitedRequest(h, "10.0.0.2")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Error("expected X-RateLimit-Remaining 0")
	}
}

func TestRateLimit_PerKeyIsolation(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1})(okHandler)

	if _, err := rateLimitedRequest(h, "10.0.0.3"); err != nil {
		t.Fatalf("first client: unexpected error: %v", err)
	}
	if _, err := rateLimitedRequest(h, "10.0.0.3"); err == nil {
		t.Fatal("first client: expected second request to be limited")
	}
	if _, err := rateLimitedRequest(h, "10.0.0.4"); err != nil {
		t.Fatalf("second client should have its own budget: %v", err)
	}
}

func TestRateLimitKey_PrefersUser(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "10.0.0.5")
	c := e.NewContext(req, httptest.NewRecorder())

	if got := rateLimitKey(c); got != "ip:10.0.0.5" {
		t.Errorf("expected ip key, got %s", got)
	}

	c.SetRequest(req.WithContext(auth.WithUser(req.Context(), "recep-1", []string{auth.RoleReceptionist})))
	if got := rateLimitKey(c); got != "user:recep-1" {
		t.Errorf("expected user key, got %s", got)
	}
}

func TestRateLimiterStore_EvictsIdle(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	start := time.Now()

	store.getLimiter("a", start)
	store.getLimiter("b", start)
	if store.size() != 2 {
		t.Fatalf("expected 2 limiters, got %d", store.size())
	}

	store.getLimiter("c", start.Add(2*time.Minute))
	if store.size() != 1 {
		t.Errorf("expected idle limiters to be evicted, got %d", store.size())
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 {
		t.Errorf("expected positive defaults, got %+v", cfg)
	}
}
