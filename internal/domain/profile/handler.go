package profile

import (
	"errors"
	"net/http"

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

// RegisterRoutes mounts the self-service routes on the dashboard group and
// the listing on the admin group.
func (h *Handler) RegisterRoutes(dashboard, admin *echo.Group) {
	dashboard.GET("/perfil", h.GetOwn)
	dashboard.PATCH("/perfil", h.UpdateOwn)

	admin.GET("/perfiles", h.List, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) GetOwn(c echo.Context) error {
	p, err := h.svc.Me(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateOwn(c echo.Context) error {
	var u ContactUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateContact(c.Request().Context(), u)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	profiles, total, err := h.svc.List(c.Request().Context(), c.QueryParam("role"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(profiles, total, pg.Limit, pg.Offset).WithLinks(c))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	case errors.Is(err, ErrInvalidContact):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
