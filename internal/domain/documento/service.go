package documento

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/blobstore"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("not allowed")
	ErrValidation = errors.New("validation failed")
)

type Service struct {
	repo   Repository
	blobs  blobstore.Store
	logger zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.Store, logger zerolog.Logger) *Service {
	return &Service{repo: repo, blobs: blobs, logger: logger}
}

// Upload stores the content and records its metadata. The blob is removed
// again when the metadata insert is refused.
func (s *Service) Upload(ctx context.Context, pacienteID uuid.UUID, fileName, contentType, categoria string, content io.Reader) (*Documento, error) {
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return nil, err
	}

	categoria = strings.ToLower(strings.TrimSpace(categoria))
	if categoria == "" {
		categoria = CategoriaOtro
	}
	if !categorias[categoria] {
		return nil, fmt.Errorf("%w: unknown categoria %q", ErrValidation, categoria)
	}

	blob, err := blobstore.ReadBlob(filepath.Base(strings.TrimSpace(fileName)), contentType, content)
	if err != nil {
		return nil, err
	}

	d := &Documento{
		PacienteID:    pacienteID,
		UploadedBy:    caller,
		NombreArchivo: filepath.Base(strings.TrimSpace(fileName)),
		ContentType:   blob.ContentType,
		SizeBytes:     blob.Size,
		StorageKey:    blobstore.NewKey(pacienteID.String()),
		SHA256:        blob.Hash,
		Categoria:     categoria,
	}
	if err := s.blobs.Put(ctx, d.StorageKey, d.ContentType, blob.Data); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}
	if err := s.repo.Create(ctx, d); err != nil {
		if derr := s.blobs.Delete(ctx, d.StorageKey); derr != nil {
			s.logger.Warn().Err(derr).Str("key", d.StorageKey).Msg("orphaned blob after failed insert")
		}
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, pacienteID, id uuid.UUID) (*Documento, error) {
	return s.repo.GetByID(ctx, pacienteID, id)
}

func (s *Service) List(ctx context.Context, pacienteID uuid.UUID, limit, offset int) ([]*Documento, int, error) {
	return s.repo.ListByPaciente(ctx, pacienteID, limit, offset)
}

// Open returns the metadata and content of a visible document. The caller
// closes the reader.
func (s *Service) Open(ctx context.Context, pacienteID, id uuid.UUID) (*Documento, io.ReadCloser, error) {
	d, err := s.repo.GetByID(ctx, pacienteID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Get(ctx, d.StorageKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, nil, fmt.Errorf("%w: content missing for documento %s", ErrNotFound, id)
		}
		return nil, nil, fmt.Errorf("read blob: %w", err)
	}
	return d, rc, nil
}

// Delete removes the metadata first; a blob that fails to delete is logged
// and left behind.
func (s *Service) Delete(ctx context.Context, pacienteID, id uuid.UUID) error {
	d, err := s.repo.Delete(ctx, pacienteID, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, d.StorageKey); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Warn().Err(err).Str("key", d.StorageKey).Msg("blob delete failed")
	}
	return nil
}
