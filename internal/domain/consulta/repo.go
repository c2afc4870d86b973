package consulta

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists consultas and their diagnoses under the caller's
// row-level policies.
type Repository interface {
	// Create inserts the consulta together with any diagnoses it carries.
	Create(ctx context.Context, c *Consulta) error
	// GetByID loads a consulta of the given patient with its diagnoses.
	GetByID(ctx context.Context, pacienteID, id uuid.UUID) (*Consulta, error)
	ListByPaciente(ctx context.Context, pacienteID uuid.UUID, limit, offset int) ([]*Consulta, int, error)
	AddDiagnostico(ctx context.Context, d *Diagnostico) error
	ListDiagnosticos(ctx context.Context, consultaID uuid.UUID) ([]*Diagnostico, error)
}
