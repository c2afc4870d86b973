package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/clinica/clinica/internal/platform/auth"
)

var ErrInvalidContact = errors.New("invalid contact data")

const maxNameLen = 100

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Me(ctx context.Context) (*Profile, error) {
	return s.repo.GetOwn(ctx)
}

// UpdateContact trims and validates the contact fields before writing them.
func (s *Service) UpdateContact(ctx context.Context, u ContactUpdate) (*Profile, error) {
	u.Nombre = strings.TrimSpace(u.Nombre)
	u.Apellido = strings.TrimSpace(u.Apellido)
	if u.Nombre == "" || u.Apellido == "" {
		return nil, fmt.Errorf("%w: nombre and apellido are required", ErrInvalidContact)
	}
	if utf8.RuneCountInString(u.Nombre) > maxNameLen || utf8.RuneCountInString(u.Apellido) > maxNameLen {
		return nil, fmt.Errorf("%w: names are limited to %d characters", ErrInvalidContact, maxNameLen)
	}
	if u.Telefono != nil {
		tel := strings.TrimSpace(*u.Telefono)
		if tel == "" {
			u.Telefono = nil
		} else {
			u.Telefono = &tel
		}
	}
	return s.repo.UpdateContact(ctx, u)
}

// List filters by role when one is given; unknown roles are rejected rather
// than silently returning nothing.
func (s *Service) List(ctx context.Context, role string, limit, offset int) ([]*Profile, int, error) {
	if role != "" {
		r := auth.NormalizeRole(role)
		switch r {
		case auth.RolePaciente, auth.RoleMedico, auth.RoleAdmin:
			role = string(r)
		default:
			return nil, 0, fmt.Errorf("%w: unknown role %q", ErrInvalidContact, role)
		}
	}
	return s.repo.List(ctx, role, limit, offset)
}
