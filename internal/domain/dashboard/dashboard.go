// Package dashboard serves the landing summary of the signed-in user.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/db"
)

// Counts are the rows the caller can see under the row-level policies.
type Counts struct {
	Carteras   int `json:"carteras"`
	Pacientes  int `json:"pacientes"`
	Consultas  int `json:"consultas"`
	Documentos int `json:"documentos"`
}

type Summary struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Role   auth.Role `json:"role"`
	Counts Counts    `json:"counts"`
}

type Counter interface {
	Counts(ctx context.Context) (Counts, error)
}

type counterPG struct {
	pool db.Beginner
}

func NewCounter(pool *pgxpool.Pool) Counter {
	return &counterPG{pool: pool}
}

func (r *counterPG) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM carteras),
				(SELECT COUNT(*) FROM pacientes),
				(SELECT COUNT(*) FROM consultas),
				(SELECT COUNT(*) FROM documentos)`,
		).Scan(&c.Carteras, &c.Pacientes, &c.Consultas, &c.Documentos)
	})
	if err != nil {
		return Counts{}, fmt.Errorf("count visible rows: %w", err)
	}
	return c, nil
}

type Handler struct {
	counter Counter
}

func NewHandler(counter Counter) *Handler {
	return &Handler{counter: counter}
}

// RegisterRoutes mounts the summary at the root of the dashboard group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Summary)
}

func (h *Handler) Summary(c echo.Context) error {
	ctx := c.Request().Context()
	u := auth.UserFromContext(ctx)
	if u == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	role, err := auth.CallerRole(ctx)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNoCaller):
			return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
		case errors.Is(err, auth.ErrProfileNotFound):
			return echo.NewHTTPError(http.StatusForbidden, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "role lookup failed")
	}
	counts, err := h.counter.Counts(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, Summary{UserID: u.ID, Email: u.Email, Role: role, Counts: counts})
}
