package cartera

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cartera is a doctor's patient portfolio.
type Cartera struct {
	ID          uuid.UUID `db:"id" json:"id"`
	MedicoID    uuid.UUID `db:"medico_id" json:"medico_id"`
	Nombre      string    `db:"nombre" json:"nombre"`
	Descripcion *string   `db:"descripcion" json:"descripcion,omitempty"`
	Pacientes   int       `db:"-" json:"pacientes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) *Date {
	return &Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("fecha must be YYYY-MM-DD: %w", err)
	}
	d.Time = t
	return nil
}

func (d *Date) timePtr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func dateFrom(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	return &Date{*t}
}

// Paciente maps to the pacientes table. ProfileID links the record to a
// patient account when the patient has one.
type Paciente struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ProfileID          *uuid.UUID `db:"profile_id" json:"profile_id,omitempty"`
	Nombre             string     `db:"nombre" json:"nombre"`
	Apellido           string     `db:"apellido" json:"apellido"`
	DocumentoIdentidad *string    `db:"documento_identidad" json:"documento_identidad,omitempty"`
	FechaNacimiento    *Date      `db:"fecha_nacimiento" json:"fecha_nacimiento,omitempty"`
	Sexo               *string    `db:"sexo" json:"sexo,omitempty"`
	Telefono           *string    `db:"telefono" json:"telefono,omitempty"`
	Email              *string    `db:"email" json:"email,omitempty"`
	Direccion          *string    `db:"direccion" json:"direccion,omitempty"`
	Notas              *string    `db:"notas" json:"notas,omitempty"`
	CreatedBy          uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Age in whole years at the given instant, or -1 without a birth date.
func (p *Paciente) Age(at time.Time) int {
	if p.FechaNacimiento == nil {
		return -1
	}
	b := p.FechaNacimiento.Time
	years := at.Year() - b.Year()
	if at.Month() < b.Month() || (at.Month() == b.Month() && at.Day() < b.Day()) {
		years--
	}
	return years
}

// Sexo values accepted on patient records.
var sexos = map[string]bool{"femenino": true, "masculino": true, "otro": true}
