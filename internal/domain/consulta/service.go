package consulta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinica/clinica/internal/platform/auth"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("not allowed")
	ErrValidation = errors.New("validation failed")
)

// maxFutureSkew tolerates clocks slightly ahead of the server when a consulta
// is dated by the client.
const maxFutureSkew = 5 * time.Minute

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func validateDiagnostico(d *Diagnostico) error {
	d.Descripcion = strings.TrimSpace(d.Descripcion)
	if d.Descripcion == "" {
		return fmt.Errorf("%w: descripcion is required", ErrValidation)
	}
	d.Tipo = strings.ToLower(strings.TrimSpace(d.Tipo))
	if d.Tipo == "" {
		d.Tipo = TipoPrincipal
	}
	if !tipos[d.Tipo] {
		return fmt.Errorf("%w: tipo must be principal, secundario or presuntivo", ErrValidation)
	}
	if d.Codigo != nil {
		code := strings.ToUpper(strings.TrimSpace(*d.Codigo))
		switch {
		case code == "":
			d.Codigo = nil
		case !cie10.MatchString(code):
			return fmt.Errorf("%w: codigo %q is not a CIE-10 code", ErrValidation, code)
		default:
			d.Codigo = &code
		}
	}
	return nil
}

// Create records a consulta by the calling doctor. A zero Fecha means now.
func (s *Service) Create(ctx context.Context, c *Consulta) error {
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	c.Motivo = strings.TrimSpace(c.Motivo)
	if c.Motivo == "" {
		return fmt.Errorf("%w: motivo is required", ErrValidation)
	}
	now := s.now()
	if c.Fecha.IsZero() {
		c.Fecha = now
	}
	if c.Fecha.After(now.Add(maxFutureSkew)) {
		return fmt.Errorf("%w: fecha is in the future", ErrValidation)
	}
	if c.Notas != nil {
		if n := strings.TrimSpace(*c.Notas); n == "" {
			c.Notas = nil
		} else {
			c.Notas = &n
		}
	}

	principal := 0
	for _, d := range c.Diagnosticos {
		if err := validateDiagnostico(d); err != nil {
			return err
		}
		if d.Tipo == TipoPrincipal {
			principal++
		}
	}
	if principal > 1 {
		return fmt.Errorf("%w: only one principal diagnostico per consulta", ErrValidation)
	}

	c.MedicoID = caller
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, pacienteID, id uuid.UUID) (*Consulta, error) {
	return s.repo.GetByID(ctx, pacienteID, id)
}

func (s *Service) List(ctx context.Context, pacienteID uuid.UUID, limit, offset int) ([]*Consulta, int, error) {
	return s.repo.ListByPaciente(ctx, pacienteID, limit, offset)
}

// AddDiagnostico attaches a diagnosis to a consulta of the given patient.
func (s *Service) AddDiagnostico(ctx context.Context, pacienteID uuid.UUID, d *Diagnostico) error {
	if err := validateDiagnostico(d); err != nil {
		return err
	}
	c, err := s.repo.GetByID(ctx, pacienteID, d.ConsultaID)
	if err != nil {
		return err
	}
	if d.Tipo == TipoPrincipal {
		for _, existing := range c.Diagnosticos {
			if existing.Tipo == TipoPrincipal {
				return fmt.Errorf("%w: consulta already has a principal diagnostico", ErrValidation)
			}
		}
	}
	return s.repo.AddDiagnostico(ctx, d)
}

func (s *Service) ListDiagnosticos(ctx context.Context, pacienteID, consultaID uuid.UUID) ([]*Diagnostico, error) {
	if _, err := s.repo.GetByID(ctx, pacienteID, consultaID); err != nil {
		return nil, err
	}
	return s.repo.ListDiagnosticos(ctx, consultaID)
}
