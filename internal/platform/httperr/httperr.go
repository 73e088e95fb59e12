// Package httperr turns service and repository errors into echo HTTP errors.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/validation"
)

// uniqueFields names the column behind each unique constraint in the schema.
var uniqueFields = map[string]string{
	"patient_rut_key": "rut",
	"doctor_rut_key":  "rut",
}

// ValidationBody is the 400 response body for rule failures.
type ValidationBody struct {
	Message string                 `json:"message"`
	Fields  validation.FieldErrors `json:"fields"`
}

// From maps err to an *echo.HTTPError. resource names the record in
// not-found and conflict messages ("patient not found"). Unknown errors
// become a 500 whose internal cause is kept for the logger but not shown to
// the client.
func From(err error, resource string) error {
	if err == nil {
		return nil
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		return echo.NewHTTPError(http.StatusBadRequest, ValidationBody{
			Message: "validation failed",
			Fields:  fe,
		})
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, resource+" not found")
	case errors.Is(err, db.ErrConflict):
		if field, ok := uniqueFields[db.ConstraintName(err)]; ok {
			return echo.NewHTTPError(http.StatusConflict, resource+" with this "+field+" already exists")
		}
		return echo.NewHTTPError(http.StatusConflict, resource+" already exists")
	case errors.Is(err, db.ErrInvalidReference):
		return echo.NewHTTPError(http.StatusBadRequest, db.ErrInvalidReference.Error())
	case errors.Is(err, db.ErrInvalidFilter):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}

// BadRequest is used for malformed bodies and path parameters.
func BadRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
