package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Role is a profile role, always in normalized form.
type Role string

const (
	RolePaciente Role = "paciente"
	RoleMedico   Role = "medico"
	RoleAdmin    Role = "admin"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrRoleMismatch    = errors.New("role does not match")
	ErrNoCaller        = errors.New("no authenticated caller")
)

// NormalizeRole lowercases and trims a stored role value.
func NormalizeRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Satisfies reports whether a caller holding r may act as expected. Admin
// satisfies every role.
func (r Role) Satisfies(expected Role) bool {
	return r == expected || r == RoleAdmin
}

// RequireRole returns middleware that checks the caller holds one of the
// given roles. The role is loaded on first use and cached for the request.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	denied := fmt.Sprintf("required role: %s", strings.Join(names, " or "))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, err := CallerRole(c.Request().Context())
			if err != nil {
				if errors.Is(err, ErrNoCaller) || errors.Is(err, ErrProfileNotFound) {
					return echo.NewHTTPError(http.StatusForbidden, denied)
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "role lookup failed")
			}
			for _, required := range roles {
				if role.Satisfies(required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, denied)
		}
	}
}
