package documento

import (
	"time"

	"github.com/google/uuid"
)

// Documento is the metadata of a file attached to a patient. The bytes live
// in the blob store under StorageKey.
type Documento struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PacienteID    uuid.UUID `db:"paciente_id" json:"paciente_id"`
	UploadedBy    uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	NombreArchivo string    `db:"nombre_archivo" json:"nombre_archivo"`
	ContentType   string    `db:"content_type" json:"content_type"`
	SizeBytes     int64     `db:"size_bytes" json:"size_bytes"`
	StorageKey    string    `db:"storage_key" json:"-"`
	SHA256        string    `db:"sha256" json:"sha256"`
	Categoria     string    `db:"categoria" json:"categoria"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

const CategoriaOtro = "otro"

var categorias = map[string]bool{
	"laboratorio":    true,
	"imagen":         true,
	"receta":         true,
	"informe":        true,
	"consentimiento": true,
	CategoriaOtro:    true,
}
