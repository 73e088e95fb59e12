// Package checks exposes the stateless RUT and vitals helpers over HTTP so
// front-desk screens can validate input before a record is submitted.
package checks

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/domain/vitals"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/httperr"
	"github.com/medrec/medrec/pkg/rut"
)

// RUTObserver records validation outcomes. *metrics.Metrics satisfies it.
type RUTObserver interface {
	ObserveRUT(res rut.Result)
}

type Handler struct {
	observer RUTObserver
}

// NewHandler returns a handler; observer may be nil.
func NewHandler(observer RUTObserver) *Handler {
	return &Handler{observer: observer}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.ReadRoles...))
	g.POST("/rut/validate", h.ValidateRUT)
	g.POST("/rut/format", h.FormatRUT)
	g.POST("/vitals/assess", h.AssessVitals)
}

type rutRequest struct {
	RUT string `json:"rut"`
}

type formatResponse struct {
	Formatted string `json:"formatted"`
}

// ValidateRUT always answers 200; an invalid RUT is reported in the body.
func (h *Handler) ValidateRUT(c echo.Context) error {
	var req rutRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	res := rut.Validate(req.RUT)
	if h.observer != nil {
		h.observer.ObserveRUT(res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) FormatRUT(c echo.Context) error {
	var req rutRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	return c.JSON(http.StatusOK, formatResponse{Formatted: rut.Format(req.RUT)})
}

func (h *Handler) AssessVitals(c echo.Context) error {
	var m vitals.Measurement
	if err := c.Bind(&m); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	a, err := vitals.Assess(m)
	if err != nil {
		return httperr.BadRequest(err.Error())
	}
	return c.JSON(http.StatusOK, a)
}
