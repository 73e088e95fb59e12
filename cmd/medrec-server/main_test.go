package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/config"
	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/metrics"
	"github.com/medrec/medrec/internal/platform/middleware"
	"github.com/medrec/medrec/internal/platform/websocket"
)

func TestCheckRUTs_AllValid(t *testing.T) {
	var out bytes.Buffer
	if !checkRUTs(&out, []string{"12.345.678-5", "76086428-5"}) {
		t.Fatalf("expected all valid, output:\n%s", out.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[1], "76.086.428-5") {
		t.Errorf("expected canonical form in %q", lines[1])
	}
}

func TestCheckRUTs_OneInvalid(t *testing.T) {
	var out bytes.Buffer
	if checkRUTs(&out, []string{"12.345.678-5", "12.345.678-K"}) {
		t.Fatal("expected failure when one RUT is invalid")
	}
	if !strings.Contains(out.String(), "check digit mismatch") {
		t.Errorf("expected mismatch reason, got:\n%s", out.String())
	}
}

func TestRUTCommand_CheckExitError(t *testing.T) {
	cmd := rutCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"check", "1-0"})

	if err := cmd.Execute(); !errors.Is(err, errInvalidRUT) {
		t.Fatalf("expected errInvalidRUT, got %v", err)
	}
}

func TestRUTCommand_Format(t *testing.T) {
	cmd := rutCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"format", "123456785", "1k"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "12.345.678-5\n1-K\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	applied := time.Date(2024, time.March, 1, 10, 30, 0, 0, time.UTC)
	var out bytes.Buffer
	printMigrationStatus(&out, []db.MigrationStatus{
		{Version: 1, Name: "records", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "exam_notes"},
	})

	got := out.String()
	if !strings.Contains(got, "2024-03-01 10:30:00") {
		t.Errorf("expected applied timestamp, got:\n%s", got)
	}
	if !strings.Contains(got, "pending") {
		t.Errorf("expected pending row, got:\n%s", got)
	}
}

func TestRateLimitConfig_FallsBackToDefault(t *testing.T) {
	got := rateLimitConfig(&config.Config{})
	if got != middleware.DefaultRateLimitConfig() {
		t.Errorf("expected defaults, got %+v", got)
	}

	got = rateLimitConfig(&config.Config{RateLimitRPS: 5, RateLimitBurst: 10})
	if got.RequestsPerSecond != 5 || got.BurstSize != 10 {
		t.Errorf("expected configured values, got %+v", got)
	}
}

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:            env,
		CORSOrigins:    []string{"http://localhost:8100"},
		RequestTimeout: 5 * time.Second,
		AuthSigningKey: "0123456789abcdef0123456789abcdef",
	}
}

func newTestServer(env string) http.Handler {
	logger := zerolog.Nop()
	return newServer(testConfig(env), logger, nil, metrics.New(), nil, websocket.NewHub(logger))
}

func TestServer_HealthIsPublic(t *testing.T) {
	srv := newTestServer("production")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), version) {
		t.Errorf("expected version in body, got %s", rec.Body.String())
	}
}

func TestServer_APIRequiresToken(t *testing.T) {
	srv := newTestServer("production")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestServer_DevValidatesRUT(t *testing.T) {
	srv := newTestServer("development")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rut/validate", strings.NewReader(`{"rut":"12345678-5"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"formatted":"12.345.678-5"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv := newTestServer("production")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "medrec_") {
		t.Error("expected medrec metrics in exposition")
	}
}
