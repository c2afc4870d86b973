package cartera

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the portfolio and patient routes on the dashboard
// group. Portfolios belong to doctors; patient reads are left to row-level
// security so a patient can open their own record.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	medico := auth.RequireRole(auth.RoleMedico)

	carteras := g.Group("/carteras", medico)
	carteras.GET("", h.ListCarteras)
	carteras.POST("", h.CreateCartera)
	carteras.GET("/:id", h.GetCartera)
	carteras.PUT("/:id", h.UpdateCartera)
	carteras.DELETE("/:id", h.DeleteCartera)
	carteras.GET("/:id/pacientes", h.ListCarteraPacientes)
	carteras.POST("/:id/pacientes", h.AddPaciente)
	carteras.DELETE("/:id/pacientes/:paciente_id", h.RemovePaciente)

	g.GET("/pacientes", h.SearchPacientes)
	g.GET("/pacientes/:id", h.GetPaciente)
	g.POST("/pacientes", h.CreatePaciente, medico)
	g.PUT("/pacientes/:id", h.UpdatePaciente, medico)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, auth.ErrNoCaller):
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func paramID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- Cartera Handlers --

func (h *Handler) CreateCartera(c echo.Context) error {
	var ca Cartera
	if err := c.Bind(&ca); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCartera(c.Request().Context(), &ca); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, ca)
}

func (h *Handler) GetCartera(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ca, err := h.svc.GetCartera(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ca)
}

func (h *Handler) ListCarteras(c echo.Context) error {
	p := pagination.FromContext(c)
	list, total, err := h.svc.ListCarteras(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, p.Limit, p.Offset).WithLinks(c))
}

func (h *Handler) UpdateCartera(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var ca Cartera
	if err := c.Bind(&ca); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ca.ID = id
	if err := h.svc.UpdateCartera(c.Request().Context(), &ca); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ca)
}

func (h *Handler) DeleteCartera(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCartera(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListCarteraPacientes(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	list, total, err := h.svc.ListPacientes(c.Request().Context(), id, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, p.Limit, p.Offset).WithLinks(c))
}

type addPacienteRequest struct {
	PacienteID uuid.UUID `json:"paciente_id"`
}

func (h *Handler) AddPaciente(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req addPacienteRequest
	if err := c.Bind(&req); err != nil || req.PacienteID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "paciente_id is required")
	}
	if err := h.svc.AddPaciente(c.Request().Context(), id, req.PacienteID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemovePaciente(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	pacienteID, err := paramID(c, "paciente_id")
	if err != nil {
		return err
	}
	if err := h.svc.RemovePaciente(c.Request().Context(), id, pacienteID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Paciente Handlers --

type createPacienteRequest struct {
	Paciente
	CarteraID *uuid.UUID `json:"cartera_id,omitempty"`
}

func (h *Handler) CreatePaciente(c echo.Context) error {
	var req createPacienteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := req.Paciente
	if err := h.svc.CreatePaciente(c.Request().Context(), &p, req.CarteraID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPaciente(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPaciente(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePaciente(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var p Paciente
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePaciente(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SearchPacientes(c echo.Context) error {
	p := pagination.FromContext(c)
	list, total, err := h.svc.SearchPacientes(c.Request().Context(), c.QueryParam("q"), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, p.Limit, p.Offset).WithLinks(c))
}
