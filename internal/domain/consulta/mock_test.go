package consulta

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/identity"
)

// mockRepo keeps consultas in memory. managers lists, per patient, the
// doctors allowed to read and write their history, standing in for the
// can_manage_paciente policy helper.
type mockRepo struct {
	managers  map[uuid.UUID]map[uuid.UUID]bool
	consultas map[uuid.UUID]*Consulta
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		managers:  make(map[uuid.UUID]map[uuid.UUID]bool),
		consultas: make(map[uuid.UUID]*Consulta),
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

func (m *mockRepo) Create(ctx context.Context, c *Consulta) error {
	if !m.visible(ctx, c.PacienteID) {
		return ErrForbidden
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	for _, d := range c.Diagnosticos {
		d.ID, d.ConsultaID, d.CreatedAt = uuid.New(), c.ID, time.Now()
	}
	cp := *c
	cp.Diagnosticos = append([]*Diagnostico(nil), c.Diagnosticos...)
	m.consultas[c.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, pacienteID, id uuid.UUID) (*Consulta, error) {
	c, ok := m.consultas[id]
	if !ok || c.PacienteID != pacienteID || !m.visible(ctx, pacienteID) {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockRepo) ListByPaciente(ctx context.Context, pacienteID uuid.UUID, limit, offset int) ([]*Consulta, int, error) {
	var out []*Consulta
	if m.visible(ctx, pacienteID) {
		for _, c := range m.consultas {
			if c.PacienteID == pacienteID {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fecha.After(out[j].Fecha) })
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

func (m *mockRepo) AddDiagnostico(_ context.Context, d *Diagnostico) error {
	c, ok := m.consultas[d.ConsultaID]
	if !ok {
		return ErrNotFound
	}
	d.ID, d.CreatedAt = uuid.New(), time.Now()
	c.Diagnosticos = append(c.Diagnosticos, d)
	return nil
}

func (m *mockRepo) ListDiagnosticos(_ context.Context, consultaID uuid.UUID) ([]*Diagnostico, error) {
	c, ok := m.consultas[consultaID]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Diagnosticos, nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func as(id uuid.UUID, role auth.Role) context.Context {
	ctx := auth.WithUser(context.Background(), &identity.User{ID: id.String()})
	return auth.WithRole(ctx, role)
}

func strPtr(s string) *string { return &s }
