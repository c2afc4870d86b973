package cartera

import (
	"context"

	"github.com/google/uuid"
)

// CarteraRepository persists portfolios and their membership. Implementations
// run as the caller, so a cartera the caller does not own reads as missing.
type CarteraRepository interface {
	Create(ctx context.Context, c *Cartera) error
	GetByID(ctx context.Context, id uuid.UUID) (*Cartera, error)
	Update(ctx context.Context, c *Cartera) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Cartera, int, error)
	AddPaciente(ctx context.Context, carteraID, pacienteID uuid.UUID) error
	RemovePaciente(ctx context.Context, carteraID, pacienteID uuid.UUID) error
	ListPacientes(ctx context.Context, carteraID uuid.UUID, limit, offset int) ([]*Paciente, int, error)
}

// PacienteRepository persists patient records.
type PacienteRepository interface {
	// Create inserts the patient and, when carteraID is set, files it in that
	// cartera in the same transaction.
	Create(ctx context.Context, p *Paciente, carteraID *uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Paciente, error)
	Update(ctx context.Context, p *Paciente) error
	Search(ctx context.Context, query string, limit, offset int) ([]*Paciente, int, error)
}
