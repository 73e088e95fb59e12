package consultation

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/httperr"
	"github.com/medrec/medrec/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.ReadRoles...))
	readGroup.GET("/consultations", h.ListConsultations)
	readGroup.GET("/consultations/:id", h.GetConsultation)
	readGroup.GET("/patients/:id/consultations", h.ListByPatient)

	writeGroup := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	writeGroup.POST("/consultations", h.CreateConsultation)
	writeGroup.PUT("/consultations/:id", h.UpdateConsultation)
	writeGroup.DELETE("/consultations/:id", h.DeleteConsultation)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, httperr.BadRequest("invalid id")
	}
	return id, nil
}

func (h *Handler) CreateConsultation(c echo.Context) error {
	var con Consultation
	if err := c.Bind(&con); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if err := h.svc.CreateConsultation(c.Request().Context(), &con); err != nil {
		return httperr.From(err, "consultation")
	}
	return c.JSON(http.StatusCreated, con)
}

func (h *Handler) GetConsultation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	con, err := h.svc.GetConsultation(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, "consultation")
	}
	return c.JSON(http.StatusOK, con)
}

// ListConsultations accepts patient_id, doctor_id, status, reason,
// diagnosis and a scheduled_at range (from, to).
func (h *Handler) ListConsultations(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchConsultations(c.Request().Context(), pagination.Filters(c), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, "consultation")
	}
	if items == nil {
		items = []*Consultation{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, "consultation")
	}
	if items == nil {
		items = []*Consultation{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateConsultation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var con Consultation
	if err := c.Bind(&con); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	con.ID = id
	if err := h.svc.UpdateConsultation(c.Request().Context(), &con); err != nil {
		return httperr.From(err, "consultation")
	}
	return c.JSON(http.StatusOK, con)
}

func (h *Handler) DeleteConsultation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteConsultation(c.Request().Context(), id); err != nil {
		return httperr.From(err, "consultation")
	}
	return c.NoContent(http.StatusNoContent)
}
