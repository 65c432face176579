package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/config"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/auth"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/events"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/idempotency"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/realtime"
)

func devConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("AUTH_SECRET", "test-secret-that-is-long-enough-for-hs256")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSlotsGenerate(t *testing.T) {
	out, err := runCLI(t, "slots", "generate", "--start", "9", "--end", "11", "--step", "30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "09:00-09:30\n09:30-10:00\n10:00-10:30\n10:30-11:00\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestSlotsCheck(t *testing.T) {
	out, err := runCLI(t, "slots", "check", "09:00-09:45")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "45 minutes") {
		t.Errorf("output = %q, want duration", out)
	}

	if _, err := runCLI(t, "slots", "check", "9:00-10:00"); err == nil {
		t.Error("expected error for malformed slot")
	}
}

func TestSlotsBuffer(t *testing.T) {
	out, err := runCLI(t, "slots", "buffer", "09:00-09:30", "--minutes", "10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "09:00-09:40" {
		t.Errorf("output = %q, want 09:00-09:40", out)
	}
}

func TestTokenCommand(t *testing.T) {
	devConfig(t)
	out, err := runCLI(t, "token", "--sub", "frontdesk", "--role", auth.RoleReceptionist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(strings.TrimSpace(out), ".") != 2 {
		t.Errorf("output %q does not look like a JWT", out)
	}
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	devConfig(t)
	if _, err := runCLI(t, "migrate", "up"); err == nil {
		t.Error("expected error without DATABASE_URL")
	}
}

func TestMigrationsFS_Embedded(t *testing.T) {
	f, err := migrationsFS("").Open("001_scheduling.sql")
	if err != nil {
		t.Fatalf("embedded migration missing: %v", err)
	}
	f.Close()
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	a, err := buildApp(context.Background(), devConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestHealthEndpoints(t *testing.T) {
	a := newTestApp(t)

	for _, path := range []string{"/health", "/health/db"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		a.echo.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func bookBody(doctorID uuid.UUID, slot string) string {
	body, _ := json.Marshal(map[string]string{
		"patient_id":   uuid.New().String(),
		"patient_name": "Asha Rao",
		"doctor_id":    doctorID.String(),
		"date":         "2030-01-15",
		"slot":         slot,
	})
	return string(body)
}

func post(a *app, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func TestBookingFlow_ConflictReturnsSuggestions(t *testing.T) {
	a := newTestApp(t)
	doctor := uuid.New()

	rec := post(a, "/api/v1/appointments", bookBody(doctor, "10:00-10:30"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first booking: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = post(a, "/api/v1/appointments", bookBody(doctor, "10:00-10:30"), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second booking: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Suggestions) == 0 {
		t.Error("expected suggestions in conflict response")
	}
	for _, s := range body.Suggestions {
		if s == "10:00-10:30" {
			t.Error("suggestions must not include the taken slot")
		}
	}
}

func TestBookingFlow_IdempotentReplay(t *testing.T) {
	a := newTestApp(t)
	body := bookBody(uuid.New(), "11:00-11:30")
	h := http.Header{}
	h.Set(idempotency.HeaderKey, "book-1")

	first := post(a, "/api/v1/appointments", body, h)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := post(a, "/api/v1/appointments", body, h)
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: expected 201, got %d: %s", second.Code, second.Body.String())
	}
	if second.Header().Get(idempotency.HeaderReplayed) != "true" {
		t.Error("expected replayed header on second response")
	}
	if first.Body.String() != second.Body.String() {
		t.Error("replayed body differs from original")
	}
}

func TestAPI_RejectsInvalidBearerToken(t *testing.T) {
	a := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t)
	if rec := post(a, "/api/v1/appointments", bookBody(uuid.New(), "14:00-14:30"), nil); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`scheduling_events_total{type="appointment.booked"} 1`,
		`route="/api/v1/appointments",status_code="201"`,
		"realtime_clients 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in metrics output", want)
		}
	}
}

func TestLiveFeed_ReceivesBooking(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.echo)
	defer srv.Close()
	doctor := uuid.New()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws?topics=" + realtime.DoctorTopic(doctor)
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp, err := http.Post(srv.URL+"/api/v1/appointments", "application/json", strings.NewReader(bookBody(doctor, "15:00-15:30")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var msg realtime.Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event.Type != events.AppointmentBooked || msg.Event.DoctorID != doctor || msg.Event.Slot != "15:00-15:30" {
		t.Errorf("unexpected event: %+v", msg.Event)
	}
}
