package cartera

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/identity"
)

// store is the shared state behind both mock repositories. It applies the
// ownership rules the row-level policies enforce in Postgres: a doctor sees
// their own carteras and the patients they created or hold in one.
type store struct {
	carteras  map[uuid.UUID]*Cartera
	pacientes map[uuid.UUID]*Paciente
	members   map[uuid.UUID]map[uuid.UUID]bool
}

func newStore() *store {
	return &store{
		carteras:  make(map[uuid.UUID]*Cartera),
		pacientes: make(map[uuid.UUID]*Paciente),
		members:   make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func callerOf(ctx context.Context) uuid.UUID {
	id, _ := auth.CallerID(ctx)
	return id
}

func (s *store) ownsCartera(ctx context.Context, c *Cartera) bool {
	return c.MedicoID == callerOf(ctx)
}

func (s *store) managesPaciente(ctx context.Context, id uuid.UUID) bool {
	caller := callerOf(ctx)
	p, ok := s.pacientes[id]
	if !ok {
		return false
	}
	if p.CreatedBy == caller || (p.ProfileID != nil && *p.ProfileID == caller) {
		return true
	}
	for cid, m := range s.members {
		if m[id] && s.carteras[cid].MedicoID == caller {
			return true
		}
	}
	return false
}

type mockCarteraRepo struct{ *store }

func (m mockCarteraRepo) Create(_ context.Context, c *Cartera) error {
	c.ID = uuid.New()
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	cp := *c
	m.carteras[c.ID] = &cp
	return nil
}

func (m mockCarteraRepo) GetByID(ctx context.Context, id uuid.UUID) (*Cartera, error) {
	c, ok := m.carteras[id]
	if !ok || !m.ownsCartera(ctx, c) {
		return nil, ErrNotFound
	}
	out := *c
	out.Pacientes = len(m.members[id])
	return &out, nil
}

func (m mockCarteraRepo) Update(ctx context.Context, c *Cartera) error {
	existing, err := m.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	c.MedicoID, c.CreatedAt, c.UpdatedAt = existing.MedicoID, existing.CreatedAt, time.Now()
	cp := *c
	m.carteras[c.ID] = &cp
	return nil
}

func (m mockCarteraRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := m.GetByID(ctx, id); err != nil {
		return err
	}
	delete(m.carteras, id)
	delete(m.members, id)
	return nil
}

func (m mockCarteraRepo) List(ctx context.Context, limit, offset int) ([]*Cartera, int, error) {
	var out []*Cartera
	for id := range m.carteras {
		if c, err := m.GetByID(ctx, id); err == nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return page(out, limit, offset)
}

func (m mockCarteraRepo) AddPaciente(ctx context.Context, carteraID, pacienteID uuid.UUID) error {
	if _, err := m.GetByID(ctx, carteraID); err != nil {
		return ErrForbidden
	}
	if !m.managesPaciente(ctx, pacienteID) {
		return ErrForbidden
	}
	if m.members[carteraID] == nil {
		m.members[carteraID] = make(map[uuid.UUID]bool)
	}
	if m.members[carteraID][pacienteID] {
		return ErrConflict
	}
	m.members[carteraID][pacienteID] = true
	return nil
}

func (m mockCarteraRepo) RemovePaciente(ctx context.Context, carteraID, pacienteID uuid.UUID) error {
	if _, err := m.GetByID(ctx, carteraID); err != nil || !m.members[carteraID][pacienteID] {
		return ErrNotFound
	}
	delete(m.members[carteraID], pacienteID)
	return nil
}

func (m mockCarteraRepo) ListPacientes(_ context.Context, carteraID uuid.UUID, limit, offset int) ([]*Paciente, int, error) {
	var out []*Paciente
	for id := range m.members[carteraID] {
		out = append(out, m.pacientes[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Apellido < out[j].Apellido })
	return page(out, limit, offset)
}

type mockPacienteRepo struct{ *store }

func (m mockPacienteRepo) Create(ctx context.Context, p *Paciente, carteraID *uuid.UUID) error {
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	cp := *p
	m.pacientes[p.ID] = &cp
	if carteraID != nil {
		return mockCarteraRepo(m).AddPaciente(ctx, *carteraID, p.ID)
	}
	return nil
}

func (m mockPacienteRepo) GetByID(ctx context.Context, id uuid.UUID) (*Paciente, error) {
	if !m.managesPaciente(ctx, id) {
		return nil, ErrNotFound
	}
	out := *m.pacientes[id]
	return &out, nil
}

func (m mockPacienteRepo) Update(ctx context.Context, p *Paciente) error {
	existing, err := m.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.CreatedBy, p.ProfileID, p.CreatedAt = existing.CreatedBy, existing.ProfileID, existing.CreatedAt
	cp := *p
	m.pacientes[p.ID] = &cp
	return nil
}

func (m mockPacienteRepo) Search(ctx context.Context, query string, limit, offset int) ([]*Paciente, int, error) {
	var out []*Paciente
	for id, p := range m.pacientes {
		if !m.managesPaciente(ctx, id) {
			continue
		}
		if query != "" && p.Nombre != query && p.Apellido != query {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Apellido < out[j].Apellido })
	return page(out, limit, offset)
}

func page[T any](items []T, limit, offset int) ([]T, int, error) {
	total := len(items)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end], total, nil
}

func newTestService() (*Service, *store) {
	st := newStore()
	svc := NewService(mockCarteraRepo{st}, mockPacienteRepo{st})
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, st
}

// as returns a context authenticated as id with the given role.
func as(id uuid.UUID, role auth.Role) context.Context {
	ctx := auth.WithUser(context.Background(), &identity.User{ID: id.String()})
	return auth.WithRole(ctx, role)
}
