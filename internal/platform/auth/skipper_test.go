package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		route  string
		target string
		want   bool
	}{
		{"/health", "/health", true},
		{"/health", "/health?verbose=1", true},
		{"/health/db", "/health/db", true},
		{"/metrics", "/metrics", true},
		{"/health/:check", "/health/extra", false},
		{"/api/v1/patients", "/api/v1/patients", false},
		{"/api/v1/patients/:id", "/api/v1/patients/abc", false},
		{"/api/v1/rut/validate", "/api/v1/rut/validate", false},
		{"/ws", "/ws", false},
		{"", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.target, nil), httptest.NewRecorder())
			c.SetPath(tt.route)

			if got := AuthSkipper(c); got != tt.want {
				t.Errorf("route %q: got %v, want %v", tt.route, got, tt.want)
			}
		})
	}
}

func TestAuthSkipper_WithJWTMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper}))
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/health", ok)
	e.GET("/health/db", ok)
	e.GET("/api/v1/patients", ok)

	tests := []struct {
		target string
		token  string
		want   int
	}{
		{"/health", "", http.StatusOK},
		{"/health/db", "", http.StatusOK},
		{"/api/v1/patients", "", http.StatusUnauthorized},
		{"/api/v1/patients", createTestToken(t, validClaims("user-789", "physician"), testSigningKey), http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.target, nil)
		if tt.token != "" {
			req.Header.Set("Authorization", "Bearer "+tt.token)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Errorf("%s (token %v): expected %d, got %d", tt.target, tt.token != "", tt.want, rec.Code)
		}
	}
}

func TestDevAuthMiddleware_SkipsPublicPaths(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), httptest.NewRecorder())
	c.SetPath("/metrics")

	var uid string
	handler := func(c echo.Context) error {
		uid = UserIDFromContext(c.Request().Context())
		return nil
	}

	if err := DevAuthMiddleware(AuthSkipper)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "" {
		t.Errorf("expected no dev identity on a public path, got %q", uid)
	}
}
