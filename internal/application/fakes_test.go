package application

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type fakeRoleRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.RoleRecord
	calls   []string

	getErr, existsErr, countErr, updateErr, insertErr, upsertErr, touchErr error

	// beforeGet runs before Get reads, outside the lock
	beforeGet func()
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{records: make(map[uuid.UUID]domain.RoleRecord)}
}

func (f *fakeRoleRepo) seed(userID uuid.UUID, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[userID] = domain.RoleRecord{UserID: userID, Role: role}
}

func (f *fakeRoleRepo) setBeforeGet(hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeGet = hook
}

func (f *fakeRoleRepo) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRoleRepo) stored(userID uuid.UUID) (domain.RoleRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[userID]
	return r, ok
}

func (f *fakeRoleRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.RoleRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "get")
	r, ok := f.records[userID]
	hook := f.beforeGet
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if !ok {
		return nil, domain.ErrRoleRecordNotFound
	}
	return &r, nil
}

func (f *fakeRoleRepo) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "exists")
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.records[userID]
	return ok, nil
}

func (f *fakeRoleRepo) Count(ctx context.Context, userID uuid.UUID, role domain.Role) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "count")
	if f.countErr != nil {
		return 0, f.countErr
	}
	if r, ok := f.records[userID]; ok && r.Role == string(role) {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeRoleRepo) Update(ctx context.Context, userID uuid.UUID, role domain.Role, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update")
	if f.updateErr != nil {
		return f.updateErr
	}
	r := f.records[userID]
	r.UserID, r.Role, r.UpdatedAt = userID, string(role), at
	f.records[userID] = r
	return nil
}

func (f *fakeRoleRepo) Insert(ctx context.Context, userID uuid.UUID, role domain.Role, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "insert")
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records[userID] = domain.RoleRecord{UserID: userID, Role: string(role), UpdatedAt: at}
	return nil
}

func (f *fakeRoleRepo) Upsert(ctx context.Context, userID uuid.UUID, role domain.Role, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "upsert")
	if f.upsertErr != nil {
		return f.upsertErr
	}
	r := f.records[userID]
	r.UserID, r.Role, r.UpdatedAt = userID, string(role), at
	f.records[userID] = r
	return nil
}

func (f *fakeRoleRepo) Touch(ctx context.Context, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "touch")
	if f.touchErr != nil {
		return f.touchErr
	}
	if r, ok := f.records[userID]; ok {
		r.TouchedAt = at
		f.records[userID] = r
	}
	return nil
}

func (f *fakeRoleRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	delete(f.records, userID)
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	err   error
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return errDuplicate
		}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) GetAll(ctx context.Context) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.User, 0, len(f.users))
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) SetMFA(ctx context.Context, id uuid.UUID, required, enrolled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.MFARequired, u.MFAEnrolled = required, enrolled
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

type fakeCameraRepo struct {
	mu      sync.Mutex
	cameras []*domain.Camera
	err     error
	getErr  error
}

func newFakeCameraRepo(cameras ...*domain.Camera) *fakeCameraRepo {
	return &fakeCameraRepo{cameras: cameras}
}

func (f *fakeCameraRepo) Create(ctx context.Context, camera *domain.Camera) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cameras = append(f.cameras, camera)
	return nil
}

func (f *fakeCameraRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Camera, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, c := range f.cameras {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, domain.ErrCameraNotFound
}

func (f *fakeCameraRepo) GetAll(ctx context.Context) ([]*domain.Camera, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*domain.Camera, len(f.cameras))
	copy(out, f.cameras)
	return out, nil
}

func (f *fakeCameraRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Camera, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*domain.Camera
	for _, c := range f.cameras {
		if _, ok := want[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCameraRepo) Update(ctx context.Context, camera *domain.Camera) error {
	return nil
}

func (f *fakeCameraRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.cameras {
		if c.ID == id {
			f.cameras = append(f.cameras[:i], f.cameras[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeCameraRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CameraStatus, recording bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cameras {
		if c.ID == id {
			c.Status, c.Recording = status, recording
			return nil
		}
	}
	return domain.ErrCameraNotFound
}

type fakeGrantRepo struct {
	mu       sync.Mutex
	grants   map[uuid.UUID][]uuid.UUID
	inserted [][]uuid.UUID
	deleted  [][]uuid.UUID
	ops      []string
	listErr  error
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[uuid.UUID][]uuid.UUID)}
}

func (f *fakeGrantRepo) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted) + len(f.deleted)
}

func (f *fakeGrantRepo) ListCameraIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]uuid.UUID, len(f.grants[userID]))
	copy(out, f.grants[userID])
	return out, nil
}

func (f *fakeGrantRepo) Insert(ctx context.Context, userID uuid.UUID, cameraIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "insert")
	f.inserted = append(f.inserted, cameraIDs)
	f.grants[userID] = append(f.grants[userID], cameraIDs...)
	return nil
}

func (f *fakeGrantRepo) Delete(ctx context.Context, userID uuid.UUID, cameraIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "delete")
	f.deleted = append(f.deleted, cameraIDs)
	drop := make(map[uuid.UUID]struct{}, len(cameraIDs))
	for _, id := range cameraIDs {
		drop[id] = struct{}{}
	}
	var kept []uuid.UUID
	for _, id := range f.grants[userID] {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	f.grants[userID] = kept
	return nil
}

func (f *fakeGrantRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.grants, userID)
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (f *fakeAudit) Append(ctx context.Context, entry domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeBroadcaster struct {
	mu        sync.Mutex
	published []domain.RoleChange
	ch        chan domain.RoleChange
	onPublish func(domain.RoleChange)
	err       error
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{ch: make(chan domain.RoleChange, 8)}
}

func (f *fakeBroadcaster) Publish(ctx context.Context, change domain.RoleChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onPublish != nil {
		f.onPublish(change)
	}
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, change)
	return nil
}

func (f *fakeBroadcaster) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan domain.RoleChange, func(), error) {
	return f.ch, func() {}, nil
}

func (f *fakeBroadcaster) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fakeFixer struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{}
}

func (f *fakeFixer) FixRole(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeFixer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSuperadmin struct {
	ok    bool
	err   error
	calls int
}

func (f *fakeSuperadmin) IsSuperadmin(ctx context.Context, principal domain.Principal) (bool, error) {
	f.calls++
	return f.ok, f.err
}

type fakeRefresher struct {
	mu    sync.Mutex
	users []uuid.UUID
}

func (f *fakeRefresher) RefreshSession(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return nil
}

type fakeSettingsRepo struct {
	values map[string]json.RawMessage
}

func (f *fakeSettingsRepo) Get(ctx context.Context, key string) (json.RawMessage, error) {
	return f.values[key], nil
}

func (f *fakeSettingsRepo) Put(ctx context.Context, key string, value json.RawMessage) error {
	if f.values == nil {
		f.values = make(map[string]json.RawMessage)
	}
	f.values[key] = value
	return nil
}

type stubError string

func (e stubError) Error() string { return string(e) }

const errDuplicate = stubError("duplicate key")

type roleStack struct {
	repo    *fakeRoleRepo
	clock   *clockwork.FakeClock
	queries *RoleQueries
	cache   *RoleCache
	source  *RoleSource
}

func newRoleStack(t *testing.T, minInterval time.Duration) *roleStack {
	t.Helper()
	clock := clockwork.NewFakeClock()
	repo := newFakeRoleRepo()
	queries := NewRoleQueries(repo, clock)
	cache, err := NewRoleCache(DefaultRoleCacheTTL, clock, nil)
	require.NoError(t, err)
	return &roleStack{
		repo:    repo,
		clock:   clock,
		queries: queries,
		cache:   cache,
		source:  NewRoleSource(cache, queries, clock, minInterval),
	}
}

func principalFor(role domain.Role) domain.Principal {
	return domain.Principal{UserID: uuid.New(), Email: string(role) + "@camwatch.test", Role: role}
}
