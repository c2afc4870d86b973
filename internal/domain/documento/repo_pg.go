package documento

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

const documentoColumns = `id, paciente_id, uploaded_by, nombre_archivo, content_type,
	size_bytes, storage_key, sha256, categoria, created_at`

type repoPG struct {
	pool db.Beginner
}

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

func scanDocumento(row pgx.Row) (*Documento, error) {
	var d Documento
	err := row.Scan(&d.ID, &d.PacienteID, &d.UploadedBy, &d.NombreArchivo, &d.ContentType,
		&d.SizeBytes, &d.StorageKey, &d.SHA256, &d.Categoria, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Documento) error {
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO documentos (paciente_id, uploaded_by, nombre_archivo, content_type,
				size_bytes, storage_key, sha256, categoria)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at`,
			d.PacienteID, d.UploadedBy, d.NombreArchivo, d.ContentType,
			d.SizeBytes, d.StorageKey, d.SHA256, d.Categoria,
		).Scan(&d.ID, &d.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("create documento: %w", translate(err))
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, pacienteID, id uuid.UUID) (*Documento, error) {
	var d *Documento
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		d, err = scanDocumento(tx.QueryRow(ctx,
			`SELECT `+documentoColumns+` FROM documentos WHERE id = $1 AND paciente_id = $2`, id, pacienteID))
		return err
	})
	return d, translate(err)
}

func (r *repoPG) ListByPaciente(ctx context.Context, pacienteID uuid.UUID, limit, offset int) ([]*Documento, int, error) {
	var (
		out   []*Documento
		total int
	)
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM documentos WHERE paciente_id = $1`, pacienteID).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT `+documentoColumns+` FROM documentos
			WHERE paciente_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, pacienteID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			d, err := scanDocumento(rows)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list documentos: %w", err)
	}
	return out, total, nil
}

func (r *repoPG) Delete(ctx context.Context, pacienteID, id uuid.UUID) (*Documento, error) {
	var d *Documento
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		d, err = scanDocumento(tx.QueryRow(ctx,
			`DELETE FROM documentos WHERE id = $1 AND paciente_id = $2 RETURNING `+documentoColumns, id, pacienteID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete documento: %w", translate(err))
	}
	return d, nil
}
