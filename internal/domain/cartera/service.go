package cartera

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinica/clinica/internal/platform/auth"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrForbidden  = errors.New("not allowed")
	ErrValidation = errors.New("validation failed")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type Service struct {
	carteras  CarteraRepository
	pacientes PacienteRepository
	now       func() time.Time
}

func NewService(carteras CarteraRepository, pacientes PacienteRepository) *Service {
	return &Service{carteras: carteras, pacientes: pacientes, now: time.Now}
}

// -- Cartera --

func validateCartera(c *Cartera) error {
	c.Nombre = strings.TrimSpace(c.Nombre)
	if c.Nombre == "" {
		return invalid("nombre is required")
	}
	c.Descripcion = trimmed(c.Descripcion)
	return nil
}

// CreateCartera files a new portfolio under the calling doctor.
func (s *Service) CreateCartera(ctx context.Context, c *Cartera) error {
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	if err := validateCartera(c); err != nil {
		return err
	}
	c.MedicoID = caller
	return s.carteras.Create(ctx, c)
}

func (s *Service) GetCartera(ctx context.Context, id uuid.UUID) (*Cartera, error) {
	return s.carteras.GetByID(ctx, id)
}

func (s *Service) UpdateCartera(ctx context.Context, c *Cartera) error {
	if err := validateCartera(c); err != nil {
		return err
	}
	return s.carteras.Update(ctx, c)
}

func (s *Service) DeleteCartera(ctx context.Context, id uuid.UUID) error {
	return s.carteras.Delete(ctx, id)
}

func (s *Service) ListCarteras(ctx context.Context, limit, offset int) ([]*Cartera, int, error) {
	return s.carteras.List(ctx, limit, offset)
}

// AddPaciente files an existing patient in a cartera. Both must be visible to
// the caller; the membership policy additionally requires the caller to
// manage the patient already.
func (s *Service) AddPaciente(ctx context.Context, carteraID, pacienteID uuid.UUID) error {
	if _, err := s.carteras.GetByID(ctx, carteraID); err != nil {
		return err
	}
	if _, err := s.pacientes.GetByID(ctx, pacienteID); err != nil {
		return err
	}
	return s.carteras.AddPaciente(ctx, carteraID, pacienteID)
}

func (s *Service) RemovePaciente(ctx context.Context, carteraID, pacienteID uuid.UUID) error {
	return s.carteras.RemovePaciente(ctx, carteraID, pacienteID)
}

func (s *Service) ListPacientes(ctx context.Context, carteraID uuid.UUID, limit, offset int) ([]*Paciente, int, error) {
	if _, err := s.carteras.GetByID(ctx, carteraID); err != nil {
		return nil, 0, err
	}
	return s.carteras.ListPacientes(ctx, carteraID, limit, offset)
}

// -- Paciente --

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func (s *Service) validatePaciente(p *Paciente) error {
	p.Nombre = strings.TrimSpace(p.Nombre)
	p.Apellido = strings.TrimSpace(p.Apellido)
	if p.Nombre == "" || p.Apellido == "" {
		return invalid("nombre and apellido are required")
	}

	p.DocumentoIdentidad = trimmed(p.DocumentoIdentidad)
	p.Telefono = trimmed(p.Telefono)
	p.Direccion = trimmed(p.Direccion)
	p.Notas = trimmed(p.Notas)

	if p.Sexo = trimmed(p.Sexo); p.Sexo != nil {
		v := strings.ToLower(*p.Sexo)
		if !sexos[v] {
			return invalid("sexo must be femenino, masculino or otro")
		}
		p.Sexo = &v
	}
	if p.Email = trimmed(p.Email); p.Email != nil {
		addr, err := mail.ParseAddress(*p.Email)
		if err != nil {
			return invalid("email is not valid")
		}
		p.Email = &addr.Address
	}
	if p.FechaNacimiento != nil && p.FechaNacimiento.After(s.now()) {
		return invalid("fecha_nacimiento is in the future")
	}
	return nil
}

// CreatePaciente registers a patient as created by the caller and, when
// carteraID is set, files it there.
func (s *Service) CreatePaciente(ctx context.Context, p *Paciente, carteraID *uuid.UUID) error {
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	if err := s.validatePaciente(p); err != nil {
		return err
	}
	if carteraID != nil {
		if _, err := s.carteras.GetByID(ctx, *carteraID); err != nil {
			return err
		}
	}
	p.CreatedBy = caller
	return s.pacientes.Create(ctx, p, carteraID)
}

func (s *Service) GetPaciente(ctx context.Context, id uuid.UUID) (*Paciente, error) {
	return s.pacientes.GetByID(ctx, id)
}

func (s *Service) UpdatePaciente(ctx context.Context, p *Paciente) error {
	if err := s.validatePaciente(p); err != nil {
		return err
	}
	return s.pacientes.Update(ctx, p)
}

func (s *Service) SearchPacientes(ctx context.Context, query string, limit, offset int) ([]*Paciente, int, error) {
	return s.pacientes.Search(ctx, strings.TrimSpace(query), limit, offset)
}
