package consulta

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Consulta is one visit of a patient to a doctor.
type Consulta struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	PacienteID   uuid.UUID      `db:"paciente_id" json:"paciente_id"`
	MedicoID     uuid.UUID      `db:"medico_id" json:"medico_id"`
	Fecha        time.Time      `db:"fecha" json:"fecha"`
	Motivo       string         `db:"motivo" json:"motivo"`
	Notas        *string        `db:"notas" json:"notas,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	Diagnosticos []*Diagnostico `db:"-" json:"diagnosticos,omitempty"`
}

// Diagnostico is a coded or free-text diagnosis recorded in a consulta.
type Diagnostico struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ConsultaID  uuid.UUID `db:"consulta_id" json:"consulta_id"`
	Codigo      *string   `db:"codigo" json:"codigo,omitempty"`
	Descripcion string    `db:"descripcion" json:"descripcion"`
	Tipo        string    `db:"tipo" json:"tipo"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

const (
	TipoPrincipal  = "principal"
	TipoSecundario = "secundario"
	TipoPresuntivo = "presuntivo"
)

var tipos = map[string]bool{TipoPrincipal: true, TipoSecundario: true, TipoPresuntivo: true}

// cie10 matches ICD-10 style codes such as J45 or E11.9.
var cie10 = regexp.MustCompile(`^[A-Z][0-9]{2}(\.[0-9A-Z]{1,4})?$`)
