package profile

import (
	"time"

	"github.com/google/uuid"
)

// Profile maps to the profiles table. Role and IsActive are only ever written
// by the signup trigger, the verification callback and administrators.
type Profile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Role      string    `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	Email     string    `db:"email" json:"email"`
	Nombre    string    `db:"nombre" json:"nombre"`
	Apellido  string    `db:"apellido" json:"apellido"`
	Telefono  *string   `db:"telefono" json:"telefono,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins nombre and apellido.
func (p *Profile) FullName() string {
	switch {
	case p.Nombre == "":
		return p.Apellido
	case p.Apellido == "":
		return p.Nombre
	}
	return p.Nombre + " " + p.Apellido
}

// ContactUpdate is the self-service subset of a profile.
type ContactUpdate struct {
	Nombre   string  `json:"nombre"`
	Apellido string  `json:"apellido"`
	Telefono *string `json:"telefono,omitempty"`
}
