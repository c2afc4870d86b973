package documento

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/identity"
)

// mockRepo keeps metadata in memory; managers stands in for the
// can_manage_paciente policy helper.
type mockRepo struct {
	managers  map[uuid.UUID]map[uuid.UUID]bool
	docs      map[uuid.UUID]*Documento
	createErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		managers: make(map[uuid.UUID]map[uuid.UUID]bool),
		docs:     make(map[uuid.UUID]*Documento),
	}
}

func (m *mockRepo) grant(pacienteID, medicoID uuid.UUID) {
	if m.managers[pacienteID] == nil {
		m.managers[pacienteID] = make(map[uuid.UUID]bool)
	}
	m.managers[pacienteID][medicoID] = true
}

func (m *mockRepo) visible(ctx context.Context, pacienteID uuid.UUID) bool {
	caller, err := auth.CallerID(ctx)
	return err == nil && m.managers[pacienteID][caller]
}

func (m *mockRepo) Create(ctx context.Context, d *Documento) error {
	if m.createErr != nil {
		return m.createErr
	}
	if !m.visible(ctx, d.PacienteID) {
		return ErrForbidden
	}
	d.ID, d.CreatedAt = uuid.New(), time.Now()
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, pacienteID, id uuid.UUID) (*Documento, error) {
	d, ok := m.docs[id]
	if !ok || d.PacienteID != pacienteID || !m.visible(ctx, pacienteID) {
		return nil, ErrNotFound
	}
	out := *d
	return &out, nil
}

func (m *mockRepo) ListByPaciente(ctx context.Context, pacienteID uuid.UUID, limit, offset int) ([]*Documento, int, error) {
	var out []*Documento
	if m.visible(ctx, pacienteID) {
		for _, d := range m.docs {
			if d.PacienteID == pacienteID {
				out = append(out, d)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NombreArchivo < out[j].NombreArchivo })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockRepo) Delete(ctx context.Context, pacienteID, id uuid.UUID) (*Documento, error) {
	d, err := m.GetByID(ctx, pacienteID, id)
	if err != nil {
		return nil, err
	}
	delete(m.docs, id)
	return d, nil
}

var errBackend = errors.New("backend unavailable")

func as(id uuid.UUID, role auth.Role) context.Context {
	ctx := auth.WithUser(context.Background(), &identity.User{ID: id.String()})
	return auth.WithRole(ctx, role)
}
