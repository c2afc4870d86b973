package documento

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/blobstore"
	"github.com/clinica/clinica/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	medico := auth.RequireRole(auth.RoleMedico)

	g.GET("/pacientes/:id/documentos", h.List)
	g.POST("/pacientes/:id/documentos", h.Upload, medico)
	g.GET("/pacientes/:id/documentos/:doc_id", h.Get)
	g.GET("/pacientes/:id/documentos/:doc_id/contenido", h.Download)
	g.DELETE("/pacientes/:id/documentos/:doc_id", h.Delete, medico)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, blobstore.ErrMissingFileName), errors.Is(err, blobstore.ErrEmptyFile):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
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

func (h *Handler) Upload(c echo.Context) error {
	pacienteID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	contentType := file.Header.Get(echo.HeaderContentType)
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}

	d, err := h.svc.Upload(c.Request().Context(), pacienteID, file.Filename, contentType, c.FormValue("categoria"), src)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) List(c echo.Context) error {
	pacienteID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	list, total, err := h.svc.List(c.Request().Context(), pacienteID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset).WithLinks(c))
}

func (h *Handler) Get(c echo.Context) error {
	pacienteID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	id, err := paramID(c, "doc_id")
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), pacienteID, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Download(c echo.Context) error {
	pacienteID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	id, err := paramID(c, "doc_id")
	if err != nil {
		return err
	}
	d, rc, err := h.svc.Open(c.Request().Context(), pacienteID, id)
	if err != nil {
		return httpError(err)
	}
	defer rc.Close()

	name := strings.ReplaceAll(d.NombreArchivo, `"`, "")
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Response().Header().Set("X-Content-Type-Options", "nosniff")
	return c.Stream(http.StatusOK, d.ContentType, rc)
}

func (h *Handler) Delete(c echo.Context) error {
	pacienteID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	id, err := paramID(c, "doc_id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), pacienteID, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
