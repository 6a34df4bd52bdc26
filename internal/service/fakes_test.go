package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/gvn-booking-api/internal/models"
	"github.com/noah-isme/gvn-booking-api/internal/repository"
	"github.com/noah-isme/gvn-booking-api/pkg/security"
)

var errStoreDown = errors.New("store unavailable")

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock"), mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	findErr error
}

func newMemoryUsers(users ...*models.User) *memoryUsers {
	m := &memoryUsers{byID: map[string]*models.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memoryUsers) copyOf(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (m *memoryUsers) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.byID {
		if u.PhoneNumber == phone {
			return m.copyOf(u), nil
		}
	}
	return nil, nil
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.copyOf(m.byID[id]), nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email != nil && strings.EqualFold(*u.Email, email) {
			return m.copyOf(u), nil
		}
	}
	return nil, nil
}

func (m *memoryUsers) Create(_ context.Context, _ sqlx.ExtContext, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.PhoneNumber == user.PhoneNumber {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	m.byID[user.ID] = m.copyOf(user)
	return nil
}

func (m *memoryUsers) UpdateProfile(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[user.ID] = m.copyOf(user)
	return nil
}

func (m *memoryUsers) UpdateAvatar(_ context.Context, id string, path *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.AvatarPath = path
	}
	return nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, _ sqlx.ExtContext, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (m *memoryUsers) SetPartnerFlag(_ context.Context, _ sqlx.ExtContext, id string, has bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.HasPartnerProfile = has
	}
	return nil
}

func (m *memoryUsers) Delete(_ context.Context, _ sqlx.ExtContext, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return false, nil
	}
	delete(m.byID, id)
	return true, nil
}

// memorySessions mirrors the compare-and-swap semantics of the SQL store.
type memorySessions struct {
	mu          sync.Mutex
	byID        map[string]*models.Session
	deactivated []string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{byID: map[string]*models.Session{}}
}

func (m *memorySessions) Create(_ context.Context, _ sqlx.ExtContext, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *session
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.byID[c.ID] = &c
	return nil
}

func (m *memorySessions) FindByRefreshToken(_ context.Context, hash string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.RefreshTokenHash == hash {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memorySessions) FindByID(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (m *memorySessions) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.byID {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memorySessions) Rotate(_ context.Context, r models.SessionRotation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[r.SessionID]
	if !ok || !s.IsActive || s.RefreshTokenHash != r.PreviousRefreshHash {
		return false, nil
	}
	s.AccessTokenHash = r.AccessTokenHash
	s.AccessExpiresAt = r.AccessExpiresAt
	s.RefreshTokenHash = r.RefreshTokenHash
	s.RefreshExpiresAt = r.RefreshExpiresAt
	return true, nil
}

func (m *memorySessions) Deactivate(_ context.Context, userID, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivated = append(m.deactivated, sessionID)
	s, ok := m.byID[sessionID]
	if !ok || s.UserID != userID {
		return false, nil
	}
	s.IsActive = false
	return true, nil
}

func (m *memorySessions) DeactivateAllForUser(_ context.Context, _ sqlx.ExtContext, userID, keep string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.byID {
		if s.UserID == userID && s.IsActive && s.ID != keep {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *memorySessions) DeleteAllForUser(_ context.Context, _ sqlx.ExtContext, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.byID {
		if s.UserID == userID {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memorySessions) get(id string) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok {
		c := *s
		return &c
	}
	return nil
}

type memoryPartners struct {
	mu       sync.Mutex
	byUser   map[string]*models.PartnerProfile
	deleted  []string
	createFn func(*models.PartnerProfile) error
}

func newMemoryPartners() *memoryPartners {
	return &memoryPartners{byUser: map[string]*models.PartnerProfile{}}
}

func (m *memoryPartners) FindByUserID(_ context.Context, userID string) (*models.PartnerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byUser[userID]; ok {
		c := *p
		c.HealthCertPaths = append([]string(nil), p.HealthCertPaths...)
		return &c, nil
	}
	return nil, nil
}

func (m *memoryPartners) Create(_ context.Context, _ sqlx.ExtContext, profile *models.PartnerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createFn != nil {
		if err := m.createFn(profile); err != nil {
			return err
		}
	}
	if _, ok := m.byUser[profile.UserID]; ok {
		return repository.ErrDuplicate
	}
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	c := *profile
	m.byUser[profile.UserID] = &c
	return nil
}

func (m *memoryPartners) Update(_ context.Context, profile *models.PartnerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *profile
	m.byUser[profile.UserID] = &c
	return nil
}

func (m *memoryPartners) DeleteByUserID(_ context.Context, _ sqlx.ExtContext, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUser[userID]; ok {
		delete(m.byUser, userID)
		m.deleted = append(m.deleted, userID)
	}
	return nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []*models.AuditLog
	err     error
}

func (m *memoryAudit) Create(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, log)
	return nil
}

func (m *memoryAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordingScheduler struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingScheduler) Schedule(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
}

func (r *recordingScheduler) scheduled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

type recordingCache struct {
	mu          sync.Mutex
	values      map[string]*models.UserSummary
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{values: map[string]*models.UserSummary{}}
}

func (c *recordingCache) Get(_ context.Context, key string, dest interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return false
	}
	*dest.(*models.UserSummary) = *v
	return true
}

func (c *recordingCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value.(*models.UserSummary)
}

func (c *recordingCache) Invalidate(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
		c.invalidated = append(c.invalidated, k)
	}
}

type memoryFiles struct {
	mu       sync.Mutex
	objects  map[string][]byte
	storeErr error
	failOn   map[string]bool
}

func newMemoryFiles() *memoryFiles {
	return &memoryFiles{objects: map[string][]byte{}, failOn: map[string]bool{}}
}

func (f *memoryFiles) Store(_ context.Context, name string, data []byte, namespace string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return "", f.storeErr
	}
	p := namespace + "/" + uuid.NewString() + "-" + name
	f.objects[p] = data
	return p, nil
}

func (f *memoryFiles) Delete(_ context.Context, p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[p] {
		return false
	}
	delete(f.objects, p)
	return true
}

func (f *memoryFiles) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not supported")
}

func (f *memoryFiles) has(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[p]
	return ok
}

func testHasher() *security.BcryptHasher {
	return security.NewBcryptHasher(bcrypt.MinCost)
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	hash, err := testHasher().Hash(plain)
	require.NoError(t, err)
	return hash
}
