package consulta

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

const consultaColumns = `id, paciente_id, medico_id, fecha, motivo, notas, created_at`

const diagnosticoColumns = `id, consulta_id, codigo, descripcion, tipo, created_at`

type repoPG struct {
	pool db.Beginner
}

// NewRepo builds the scoped consulta repository over the application pool.
func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows), db.IsForeignKeyViolation(err):
		return ErrNotFound
	case db.IsPolicyViolation(err):
		return ErrForbidden
	}
	return err
}

func scanConsulta(row pgx.Row) (*Consulta, error) {
	var c Consulta
	if err := row.Scan(&c.ID, &c.PacienteID, &c.MedicoID, &c.Fecha, &c.Motivo, &c.Notas, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func insertDiagnostico(ctx context.Context, tx pgx.Tx, d *Diagnostico) error {
	return tx.QueryRow(ctx, `
		INSERT INTO diagnosticos (consulta_id, codigo, descripcion, tipo)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		d.ConsultaID, d.Codigo, d.Descripcion, d.Tipo,
	).Scan(&d.ID, &d.CreatedAt)
}

func listDiagnosticos(ctx context.Context, tx pgx.Tx, consultaID uuid.UUID) ([]*Diagnostico, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+diagnosticoColumns+` FROM diagnosticos WHERE consulta_id = $1 ORDER BY created_at, id`, consultaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Diagnostico
	for rows.Next() {
		var d Diagnostico
		if err := rows.Scan(&d.ID, &d.ConsultaID, &d.Codigo, &d.Descripcion, &d.Tipo, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, c *Consulta) error {
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO consultas (paciente_id, medico_id, fecha, motivo, notas)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			c.PacienteID, c.MedicoID, c.Fecha, c.Motivo, c.Notas,
		).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			return err
		}
		for _, d := range c.Diagnosticos {
			d.ConsultaID = c.ID
			if err := insertDiagnostico(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create consulta: %w", translate(err))
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, pacienteID, id uuid.UUID) (*Consulta, error) {
	var c *Consulta
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		c, err = scanConsulta(tx.QueryRow(ctx,
			`SELECT `+consultaColumns+` FROM consultas WHERE id = $1 AND paciente_id = $2`, id, pacienteID))
		if err != nil {
			return err
		}
		c.Diagnosticos, err = listDiagnosticos(ctx, tx, c.ID)
		return err
	})
	return c, translate(err)
}

func (r *repoPG) ListByPaciente(ctx context.Context, pacienteID uuid.UUID, limit, offset int) ([]*Consulta, int, error) {
	var (
		out   []*Consulta
		total int
	)
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM consultas WHERE paciente_id = $1`, pacienteID).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT `+consultaColumns+` FROM consultas
			WHERE paciente_id = $1 ORDER BY fecha DESC, id LIMIT $2 OFFSET $3`, pacienteID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanConsulta(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list consultas: %w", err)
	}
	return out, total, nil
}

func (r *repoPG) AddDiagnostico(ctx context.Context, d *Diagnostico) error {
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return insertDiagnostico(ctx, tx, d)
	})
	if err != nil {
		return fmt.Errorf("add diagnostico: %w", translate(err))
	}
	return nil
}

func (r *repoPG) ListDiagnosticos(ctx context.Context, consultaID uuid.UUID) ([]*Diagnostico, error) {
	var out []*Diagnostico
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		out, err = listDiagnosticos(ctx, tx, consultaID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list diagnosticos: %w", err)
	}
	return out, nil
}
