package documento

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists document metadata under the caller's row-level
// policies.
type Repository interface {
	Create(ctx context.Context, d *Documento) error
	GetByID(ctx context.Context, pacienteID, id uuid.UUID) (*Documento, error)
	ListByPaciente(ctx context.Context, pacienteID uuid.UUID, limit, offset int) ([]*Documento, int, error)
	// Delete removes the row and returns it so the caller can drop the blob.
	Delete(ctx context.Context, pacienteID, id uuid.UUID) (*Documento, error)
}
