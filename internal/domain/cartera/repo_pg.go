package cartera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

// translate maps Postgres failures onto the package's sentinel errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrConflict
	case db.IsForeignKeyViolation(err):
		return ErrNotFound
	case db.IsPolicyViolation(err):
		return ErrForbidden
	}
	return err
}

// -- Cartera Repository --

const carteraColumns = `c.id, c.medico_id, c.nombre, c.descripcion, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM cartera_pacientes cp WHERE cp.cartera_id = c.id)`

type carteraRepoPG struct {
	pool db.Beginner
}

// NewCarteraRepo builds the scoped cartera repository over the application pool.
func NewCarteraRepo(pool *pgxpool.Pool) CarteraRepository {
	return &carteraRepoPG{pool: pool}
}

func scanCartera(row pgx.Row) (*Cartera, error) {
	var c Cartera
	if err := row.Scan(&c.ID, &c.MedicoID, &c.Nombre, &c.Descripcion, &c.CreatedAt, &c.UpdatedAt, &c.Pacientes); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *carteraRepoPG) Create(ctx context.Context, c *Cartera) error {
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO carteras (medico_id, nombre, descripcion)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`,
			c.MedicoID, c.Nombre, c.Descripcion,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("create cartera: %w", translate(err))
	}
	return nil
}

func (r *carteraRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Cartera, error) {
	var c *Cartera
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		c, err = scanCartera(tx.QueryRow(ctx, `SELECT `+carteraColumns+` FROM carteras c WHERE c.id = $1`, id))
		return err
	})
	return c, translate(err)
}

func (r *carteraRepoPG) Update(ctx context.Context, c *Cartera) error {
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			UPDATE carteras SET nombre = $2, descripcion = $3, updated_at = now()
			WHERE id = $1
			RETURNING medico_id, created_at, updated_at`,
			c.ID, c.Nombre, c.Descripcion,
		).Scan(&c.MedicoID, &c.CreatedAt, &c.UpdatedAt)
	})
	return translate(err)
}

func (r *carteraRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM carteras WHERE id = $1`, id)
		if err != nil {
			return translate(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *carteraRepoPG) List(ctx context.Context, limit, offset int) ([]*Cartera, int, error) {
	var (
		out   []*Cartera
		total int
	)
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM carteras`).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx,
			`SELECT `+carteraColumns+` FROM carteras c ORDER BY c.nombre, c.id LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCartera(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list carteras: %w", err)
	}
	return out, total, nil
}

func (r *carteraRepoPG) AddPaciente(ctx context.Context, carteraID, pacienteID uuid.UUID) error {
	return db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO cartera_pacientes (cartera_id, paciente_id) VALUES ($1, $2)`, carteraID, pacienteID)
		return translate(err)
	})
}

func (r *carteraRepoPG) RemovePaciente(ctx context.Context, carteraID, pacienteID uuid.UUID) error {
	return db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM cartera_pacientes WHERE cartera_id = $1 AND paciente_id = $2`, carteraID, pacienteID)
		if err != nil {
			return translate(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *carteraRepoPG) ListPacientes(ctx context.Context, carteraID uuid.UUID, limit, offset int) ([]*Paciente, int, error) {
	var (
		out   []*Paciente
		total int
	)
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM cartera_pacientes WHERE cartera_id = $1`, carteraID).Scan(&total); err != nil {
			return err
		}
		var err error
		out, err = queryPacientes(ctx, tx, `
			SELECT `+pacienteColumns+` FROM pacientes p
			JOIN cartera_pacientes cp ON cp.paciente_id = p.id
			WHERE cp.cartera_id = $1
			ORDER BY p.apellido, p.nombre, p.id LIMIT $2 OFFSET $3`, carteraID, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list cartera pacientes: %w", err)
	}
	return out, total, nil
}

// -- Paciente Repository --

const pacienteColumns = `p.id, p.profile_id, p.nombre, p.apellido, p.documento_identidad, p.fecha_nacimiento,
	p.sexo, p.telefono, p.email, p.direccion, p.notas, p.created_by, p.created_at, p.updated_at`

type pacienteRepoPG struct {
	pool db.Beginner
}

// NewPacienteRepo builds the scoped patient repository over the application pool.
func NewPacienteRepo(pool *pgxpool.Pool) PacienteRepository {
	return &pacienteRepoPG{pool: pool}
}

func scanPaciente(row pgx.Row) (*Paciente, error) {
	var p Paciente
	var nacimiento *time.Time
	err := row.Scan(&p.ID, &p.ProfileID, &p.Nombre, &p.Apellido, &p.DocumentoIdentidad, &nacimiento,
		&p.Sexo, &p.Telefono, &p.Email, &p.Direccion, &p.Notas, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.FechaNacimiento = dateFrom(nacimiento)
	return &p, nil
}

func queryPacientes(ctx context.Context, tx pgx.Tx, sql string, args ...interface{}) ([]*Paciente, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Paciente
	for rows.Next() {
		p, err := scanPaciente(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pacienteRepoPG) Create(ctx context.Context, p *Paciente, carteraID *uuid.UUID) error {
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO pacientes (
				profile_id, nombre, apellido, documento_identidad, fecha_nacimiento,
				sexo, telefono, email, direccion, notas, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at`,
			p.ProfileID, p.Nombre, p.Apellido, p.DocumentoIdentidad, p.FechaNacimiento.timePtr(),
			p.Sexo, p.Telefono, p.Email, p.Direccion, p.Notas, p.CreatedBy,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}
		if carteraID == nil {
			return nil
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO cartera_pacientes (cartera_id, paciente_id) VALUES ($1, $2)`, *carteraID, p.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("create paciente: %w", translate(err))
	}
	return nil
}

func (r *pacienteRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Paciente, error) {
	var p *Paciente
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		p, err = scanPaciente(tx.QueryRow(ctx, `SELECT `+pacienteColumns+` FROM pacientes p WHERE p.id = $1`, id))
		return err
	})
	return p, translate(err)
}

func (r *pacienteRepoPG) Update(ctx context.Context, p *Paciente) error {
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			UPDATE pacientes SET
				nombre = $2, apellido = $3, documento_identidad = $4, fecha_nacimiento = $5,
				sexo = $6, telefono = $7, email = $8, direccion = $9, notas = $10, updated_at = now()
			WHERE id = $1
			RETURNING profile_id, created_by, created_at, updated_at`,
			p.ID, p.Nombre, p.Apellido, p.DocumentoIdentidad, p.FechaNacimiento.timePtr(),
			p.Sexo, p.Telefono, p.Email, p.Direccion, p.Notas,
		).Scan(&p.ProfileID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	})
	return translate(err)
}

// Search matches query against names and the identity document; an empty
// query lists every visible patient.
func (r *pacienteRepoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Paciente, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	if query != "" {
		args = append(args, "%"+query+"%")
		where += ` AND (p.nombre ILIKE $1 OR p.apellido ILIKE $1 OR p.documento_identidad ILIKE $1)`
	}

	var (
		out   []*Paciente
		total int
	)
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM pacientes p`+where, args...).Scan(&total); err != nil {
			return err
		}
		var err error
		out, err = queryPacientes(ctx, tx, fmt.Sprintf(
			`SELECT `+pacienteColumns+` FROM pacientes p`+where+` ORDER BY p.apellido, p.nombre, p.id LIMIT $%d OFFSET $%d`,
			len(args)+1, len(args)+2), append(args, limit, offset)...)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search pacientes: %w", err)
	}
	return out, total, nil
}
