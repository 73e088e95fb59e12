package exam

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
	readGroup.GET("/exams", h.ListExams)
	readGroup.GET("/exams/:id", h.GetExam)
	readGroup.GET("/patients/:id/exams", h.ListByPatient)

	writeGroup := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	writeGroup.POST("/exams", h.CreateExam)
	writeGroup.PUT("/exams/:id", h.UpdateExam)
	writeGroup.POST("/exams/:id/start", h.StartExam)
	writeGroup.POST("/exams/:id/complete", h.CompleteExam)
	writeGroup.DELETE("/exams/:id", h.DeleteExam)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, httperr.BadRequest("invalid id")
	}
	return id, nil
}

func (h *Handler) CreateExam(c echo.Context) error {
	var e Exam
	if err := c.Bind(&e); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if err := h.svc.CreateExam(c.Request().Context(), &e); err != nil {
		return httperr.From(err, "exam")
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetExam(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetExam(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, "exam")
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListExams(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchExams(c.Request().Context(), pagination.Filters(c), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, "exam")
	}
	if items == nil {
		items = []*Exam{}
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
		return httperr.From(err, "exam")
	}
	if items == nil {
		items = []*Exam{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateExam(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var e Exam
	if err := c.Bind(&e); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	e.ID = id
	if err := h.svc.UpdateExam(c.Request().Context(), &e); err != nil {
		return httperr.From(err, "exam")
	}
	return c.JSON(http.StatusOK, e)
}

type completeRequest struct {
	Result string `json:"result"`
}

func (h *Handler) CompleteExam(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	e, err := h.svc.CompleteExam(c.Request().Context(), id, req.Result)
	if err != nil {
		return httperr.From(err, "exam")
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) StartExam(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.StartExam(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, "exam")
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteExam(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteExam(c.Request().Context(), id); err != nil {
		return httperr.From(err, "exam")
	}
	return c.NoContent(http.StatusNoContent)
}
