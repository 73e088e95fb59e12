package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/validation"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  interface{}
	}{
		{"not found", db.MapError(pgx.ErrNoRows), http.StatusNotFound, "patient not found"},
		{"wrapped not found", fmt.Errorf("get: %w", db.ErrNotFound), http.StatusNotFound, "patient not found"},
		{"conflict", db.ErrConflict, http.StatusConflict, "patient already exists"},
		{"rut conflict", db.MapError(&pgconn.PgError{Code: "23505", ConstraintName: "patient_rut_key"}), http.StatusConflict, "patient with this rut already exists"},
		{"unnamed conflict", db.MapError(&pgconn.PgError{Code: "23505", ConstraintName: "other_key"}), http.StatusConflict, "patient already exists"},
		{"bad reference", db.ErrInvalidReference, http.StatusBadRequest, "referenced record does not exist"},
		{"bad filter", fmt.Errorf("%w: active must be true or false", db.ErrInvalidFilter), http.StatusBadRequest, "invalid filter: active must be true or false"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var he *echo.HTTPError
			if !errors.As(From(tt.err, "patient"), &he) {
				t.Fatal("expected *echo.HTTPError")
			}
			if he.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, he.Code)
			}
			if he.Message != tt.msg {
				t.Errorf("expected message %v, got %v", tt.msg, he.Message)
			}
		})
	}
}

func TestFrom_ValidationErrors(t *testing.T) {
	err := fmt.Errorf("create: %w", validation.Invalid("rut", "check digit mismatch"))

	var he *echo.HTTPError
	if !errors.As(From(err, "patient"), &he) {
		t.Fatal("expected *echo.HTTPError")
	}
	if he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", he.Code)
	}
	body, ok := he.Message.(ValidationBody)
	if !ok {
		t.Fatalf("expected ValidationBody, got %T", he.Message)
	}
	if len(body.Fields) != 1 || body.Fields[0].Field != "rut" {
		t.Errorf("unexpected fields %+v", body.Fields)
	}
}

func TestFrom_KeepsInternalCause(t *testing.T) {
	cause := errors.New("pool closed")
	var he *echo.HTTPError
	errors.As(From(cause, "exam"), &he)
	if !errors.Is(he.Internal, cause) {
		t.Errorf("expected internal cause to be kept, got %v", he.Internal)
	}
}

func TestFrom_PassesHTTPErrorsThrough(t *testing.T) {
	orig := echo.NewHTTPError(http.StatusForbidden, "nope")
	if got := From(orig, "x"); got != orig {
		t.Errorf("expected the same HTTPError back, got %v", got)
	}
	if From(nil, "x") != nil {
		t.Error("expected nil for nil error")
	}
}
