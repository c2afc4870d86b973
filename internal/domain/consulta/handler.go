package consulta

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

// RegisterRoutes mounts the consulta routes under a patient on the dashboard
// group. Reads follow the patient's visibility; writes need a doctor.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	medico := auth.RequireRole(auth.RoleMedico)

	g.GET("/pacientes/:id/consultas", h.List)
	g.POST("/pacientes/:id/consultas", h.Create, medico)
	g.GET("/pacientes/:id/consultas/:consulta_id", h.Get)
	g.GET("/pacientes/:id/consultas/:consulta_id/diagnosticos", h.ListDiagnosticos)
	g.POST("/pacientes/:id/consultas/:consulta_id/diagnosticos", h.AddDiagnostico, medico)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrForbidden), errors.Is(err, auth.ErrNoCaller):
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func ids(c echo.Context, names ...string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(names))
	for i, name := range names {
		id, err := uuid.Parse(c.Param(name))
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
		}
		out[i] = id
	}
	return out, nil
}

func (h *Handler) Create(c echo.Context) error {
	p, err := ids(c, "id")
	if err != nil {
		return err
	}
	var con Consulta
	if err := c.Bind(&con); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	con.PacienteID = p[0]
	if err := h.svc.Create(c.Request().Context(), &con); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, con)
}

func (h *Handler) Get(c echo.Context) error {
	p, err := ids(c, "id", "consulta_id")
	if err != nil {
		return err
	}
	con, err := h.svc.Get(c.Request().Context(), p[0], p[1])
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, con)
}

func (h *Handler) List(c echo.Context) error {
	p, err := ids(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	list, total, err := h.svc.List(c.Request().Context(), p[0], pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset).WithLinks(c))
}

func (h *Handler) AddDiagnostico(c echo.Context) error {
	p, err := ids(c, "id", "consulta_id")
	if err != nil {
		return err
	}
	var d Diagnostico
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ConsultaID = p[1]
	if err := h.svc.AddDiagnostico(c.Request().Context(), p[0], &d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDiagnosticos(c echo.Context) error {
	p, err := ids(c, "id", "consulta_id")
	if err != nil {
		return err
	}
	list, err := h.svc.ListDiagnosticos(c.Request().Context(), p[0], p[1])
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}
