package http

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/google/uuid"
)

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]*domain.User)}
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) GetAll(_ context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memUsers) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) SetMFA(_ context.Context, id uuid.UUID, required, enrolled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.MFARequired, u.MFAEnrolled = required, enrolled
	return nil
}

func (m *memUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

type memRoles struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.RoleRecord
}

func newMemRoles() *memRoles {
	return &memRoles{records: make(map[uuid.UUID]domain.RoleRecord)}
}

func (m *memRoles) Get(_ context.Context, id uuid.UUID) (*domain.RoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrRoleRecordNotFound
	}
	return &rec, nil
}

func (m *memRoles) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok, nil
}

func (m *memRoles) Count(_ context.Context, id uuid.UUID, role domain.Role) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok && rec.Role == string(role) {
		return 1, nil
	}
	return 0, nil
}

func (m *memRoles) Update(_ context.Context, id uuid.UUID, role domain.Role, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return domain.ErrRoleRecordNotFound
	}
	m.records[id] = domain.RoleRecord{UserID: id, Role: string(role), UpdatedAt: at, TouchedAt: at}
	return nil
}

func (m *memRoles) Insert(_ context.Context, id uuid.UUID, role domain.Role, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = domain.RoleRecord{UserID: id, Role: string(role), UpdatedAt: at, TouchedAt: at}
	return nil
}

func (m *memRoles) Upsert(ctx context.Context, id uuid.UUID, role domain.Role, at time.Time) error {
	return m.Insert(ctx, id, role, at)
}

func (m *memRoles) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domain.ErrRoleRecordNotFound
	}
	rec.TouchedAt = at
	m.records[id] = rec
	return nil
}

func (m *memRoles) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memRoles) role(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id].Role
}

type memCameras struct {
	mu      sync.Mutex
	cameras map[uuid.UUID]*domain.Camera
}

func newMemCameras() *memCameras {
	return &memCameras{cameras: make(map[uuid.UUID]*domain.Camera)}
}

func (m *memCameras) Create(_ context.Context, c *domain.Camera) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.cameras[c.ID] = &cp
	return nil
}

func (m *memCameras) GetByID(_ context.Context, id uuid.UUID) (*domain.Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cameras[id]
	if !ok {
		return nil, domain.ErrCameraNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCameras) GetAll(_ context.Context) ([]*domain.Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Camera, 0, len(m.cameras))
	for _, c := range m.cameras {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memCameras) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Camera{}
	for _, id := range ids {
		if c, ok := m.cameras[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memCameras) Update(_ context.Context, c *domain.Camera) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cameras[c.ID]; !ok {
		return domain.ErrCameraNotFound
	}
	cp := *c
	m.cameras[c.ID] = &cp
	return nil
}

func (m *memCameras) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cameras[id]; !ok {
		return domain.ErrCameraNotFound
	}
	delete(m.cameras, id)
	return nil
}

func (m *memCameras) UpdateStatus(_ context.Context, id uuid.UUID, status domain.CameraStatus, recording bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cameras[id]
	if !ok {
		return domain.ErrCameraNotFound
	}
	c.Status, c.Recording = status, recording
	return nil
}

type memGrants struct {
	mu     sync.Mutex
	grants map[uuid.UUID]map[uuid.UUID]struct{}
}

func newMemGrants() *memGrants {
	return &memGrants{grants: make(map[uuid.UUID]map[uuid.UUID]struct{})}
}

func (m *memGrants) ListCameraIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []uuid.UUID{}
	for id := range m.grants[userID] {
		out = append(out, id)
	}
	return out, nil
}

func (m *memGrants) Insert(_ context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grants[userID] == nil {
		m.grants[userID] = make(map[uuid.UUID]struct{})
	}
	for _, id := range ids {
		m.grants[userID][id] = struct{}{}
	}
	return nil
}

func (m *memGrants) Delete(_ context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.grants[userID], id)
	}
	return nil
}

func (m *memGrants) DeleteAllForUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, userID)
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *memAudit) Append(_ context.Context, e domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) Recent(_ context.Context, source string, limit int) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.AuditEntry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if source == "" || m.entries[i].Source == source {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

type memSettings struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
}

func (m *memSettings) Get(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *memSettings) Put(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]json.RawMessage)
	}
	m.values[key] = value
	return nil
}
