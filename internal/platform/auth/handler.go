package auth

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/identity"
)

const (
	MsgSignupDone   = "Te enviamos un correo para confirmar tu cuenta"
	MsgEmailTaken   = "Ya existe una cuenta con ese correo"
	MsgInvalidEmail = "El correo no es válido"
	MsgWeakPassword = "La contraseña debe tener al menos 8 caracteres"
	MsgMissingNames = "Nombre y apellido son obligatorios"
	MsgSignupFailed = "No se pudo crear la cuenta, inténtalo de nuevo"
)

// signupMetadataKeys are copied from the signup form into the identity
// metadata; the profile trigger reads them. Role is never among them.
var signupMetadataKeys = []string{"nombre", "apellido", "telefono"}

// Handler serves the sign-in pages and their form actions.
type Handler struct {
	provider identity.Provider
	resolver *Resolver
	login    *Login
	logger   zerolog.Logger
}

func NewHandler(provider identity.Provider, resolver *Resolver, login *Login, logger zerolog.Logger) *Handler {
	return &Handler{
		provider: provider,
		resolver: resolver,
		login:    login,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterRoutes mounts the auth pages. submit wraps the credential-bearing
// POSTs (login and signup), e.g. with a rate limiter.
func (h *Handler) RegisterRoutes(e *echo.Echo, submit ...echo.MiddlewareFunc) {
	e.GET(LoginChooserPath, h.Chooser)
	e.GET(LoginPath+"/:portal", h.LoginForm)
	e.POST(LoginPath+"/:portal", h.LoginSubmit, submit...)
	e.GET(SignupPath, h.SignupForm)
	e.POST(SignupPath, h.SignupSubmit, submit...)
	e.POST(LogoutPath, h.Logout)
}

func render(c echo.Context, tpl *template.Template, data pageData) error {
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// redirectWith sends a 303 so the browser follows a form POST with a GET.
func redirectWith(c echo.Context, path, key, value string) error {
	return c.Redirect(http.StatusSeeOther, path+"?"+url.Values{key: {value}}.Encode())
}

func (h *Handler) Chooser(c echo.Context) error {
	list := make([]Portal, 0, len(portals))
	for _, p := range portals {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Slug > list[j].Slug })

	return render(c, chooserPage, pageData{
		Title:   "Ingreso",
		Error:   c.QueryParam("error"),
		Portals: list,
	})
}

func (h *Handler) LoginForm(c echo.Context) error {
	portal, ok := PortalBySlug(c.Param("portal"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "portal not found")
	}
	return render(c, loginPage, pageData{
		Title:   portal.Title,
		Error:   c.QueryParam("error"),
		Message: c.QueryParam("mensaje"),
		Action:  portal.Path(),
	})
}

// LoginSubmit drives the login state machine and turns its terminal state
// into cookies and a redirect.
func (h *Handler) LoginSubmit(c echo.Context) error {
	portal, ok := PortalBySlug(c.Param("portal"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "portal not found")
	}

	res := h.login.Attempt(c.Request().Context(), portal, c.FormValue("email"), c.FormValue("password"))
	if res.Outcome == OutcomeSuccess {
		h.resolver.SetSession(c, res.Session)
		return c.Redirect(http.StatusSeeOther, DashboardPrefix)
	}
	if res.SignedOut {
		h.resolver.ClearSession(c)
	}
	return redirectWith(c, portal.Path(), "error", res.Message)
}

func (h *Handler) SignupForm(c echo.Context) error {
	return render(c, signupPage, pageData{
		Title: "Registro de pacientes",
		Error: c.QueryParam("error"),
		Form:  map[string]string{},
	})
}

func (h *Handler) SignupSubmit(c echo.Context) error {
	meta := make(map[string]string)
	for _, key := range signupMetadataKeys {
		if v := strings.TrimSpace(c.FormValue(key)); v != "" {
			meta[key] = v
		}
	}
	if meta["nombre"] == "" || meta["apellido"] == "" {
		return redirectWith(c, SignupPath, "error", MsgMissingNames)
	}

	_, err := h.provider.SignUp(c.Request().Context(), c.FormValue("email"), c.FormValue("password"), meta)
	switch {
	case err == nil:
		pacientes, _ := PortalBySlug("pacientes")
		return redirectWith(c, pacientes.Path(), "mensaje", MsgSignupDone)
	case errors.Is(err, identity.ErrEmailTaken):
		return redirectWith(c, SignupPath, "error", MsgEmailTaken)
	case errors.Is(err, identity.ErrInvalidEmail):
		return redirectWith(c, SignupPath, "error", MsgInvalidEmail)
	case errors.Is(err, identity.ErrWeakPassword):
		return redirectWith(c, SignupPath, "error", MsgWeakPassword)
	default:
		h.logger.Error().Err(err).Msg("signup failed")
		return redirectWith(c, SignupPath, "error", MsgSignupFailed)
	}
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.resolver.SignOut(c); err != nil {
		h.logger.Error().Err(err).Msg("sign-out failed")
	}
	return c.Redirect(http.StatusSeeOther, LoginChooserPath)
}
