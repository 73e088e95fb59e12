package medication

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
	// Read endpoints – all clinic staff
	readGroup := api.Group("", auth.RequireRole(auth.ReadRoles...))
	readGroup.GET("/medications", h.ListMedications)
	readGroup.GET("/medications/:id", h.GetMedication)
	readGroup.GET("/prescriptions", h.ListPrescriptions)
	readGroup.GET("/prescriptions/:id", h.GetPrescription)
	readGroup.GET("/patients/:id/prescriptions", h.ListPrescriptionsByPatient)

	// Catalog maintenance – admin only
	catalogGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	catalogGroup.POST("/medications", h.CreateMedication)
	catalogGroup.PUT("/medications/:id", h.UpdateMedication)
	catalogGroup.DELETE("/medications/:id", h.DeleteMedication)

	// Prescribing – physicians
	rxGroup := api.Group("", auth.RequireRole(auth.PrescriberRoles...))
	rxGroup.POST("/prescriptions", h.CreatePrescription)
	rxGroup.PUT("/prescriptions/:id", h.UpdatePrescription)
	rxGroup.POST("/prescriptions/:id/complete", h.CompletePrescription)
	rxGroup.POST("/prescriptions/:id/cancel", h.CancelPrescription)
	rxGroup.DELETE("/prescriptions/:id", h.DeletePrescription)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, httperr.BadRequest("invalid id")
	}
	return id, nil
}

// -- Medication Handlers --

func (h *Handler) CreateMedication(c echo.Context) error {
	var m Medication
	if err := c.Bind(&m); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if err := h.svc.CreateMedication(c.Request().Context(), &m); err != nil {
		return httperr.From(err, "medication")
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, "medication")
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchMedications(c.Request().Context(), pagination.Filters(c), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, "medication")
	}
	if items == nil {
		items = []*Medication{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var m Medication
	if err := c.Bind(&m); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	m.ID = id
	if err := h.svc.UpdateMedication(c.Request().Context(), &m); err != nil {
		return httperr.From(err, "medication")
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(c.Request().Context(), id); err != nil {
		return httperr.From(err, "medication")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Prescription Handlers --

func (h *Handler) CreatePrescription(c echo.Context) error {
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if err := h.svc.CreatePrescription(c.Request().Context(), &p); err != nil {
		return httperr.From(err, "prescription")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, "prescription")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchPrescriptions(c.Request().Context(), pagination.Filters(c), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, "prescription")
	}
	if items == nil {
		items = []*Prescription{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPrescriptionsByPatient(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPrescriptionsByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, "prescription")
	}
	if items == nil {
		items = []*Prescription{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePrescription(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	p.ID = id
	if err := h.svc.UpdatePrescription(c.Request().Context(), &p); err != nil {
		return httperr.From(err, "prescription")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CompletePrescription(c echo.Context) error {
	return h.setStatus(c, PrescriptionCompleted)
}

func (h *Handler) CancelPrescription(c echo.Context) error {
	return h.setStatus(c, PrescriptionCancelled)
}

func (h *Handler) setStatus(c echo.Context, status string) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.SetPrescriptionStatus(c.Request().Context(), id, status)
	if err != nil {
		return httperr.From(err, "prescription")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePrescription(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePrescription(c.Request().Context(), id); err != nil {
		return httperr.From(err, "prescription")
	}
	return c.NoContent(http.StatusNoContent)
}
