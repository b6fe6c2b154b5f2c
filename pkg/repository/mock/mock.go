package mock

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/garnizeh/contactdesk/pkg/models"
	"github.com/garnizeh/contactdesk/pkg/repository"
)

var _ repository.ContactRepo = (*MockContactRepo)(nil)
var _ repository.AdminRepo = (*MockAdminRepo)(nil)
var _ repository.TokenRepo = (*MockTokenRepo)(nil)

// Test helpers and mocks
type Mocks struct {
	Contacts *MockContactRepo
	Admins   *MockAdminRepo
	Tokens   *MockTokenRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		Contacts: &MockContactRepo{},
		Admins:   &MockAdminRepo{},
		Tokens:   &MockTokenRepo{revoked: map[string]int64{}},
	}
}

// MockContactRepo keeps contacts in insertion order. Err, when set, is
// returned by every method.
type MockContactRepo struct {
	mu     sync.Mutex
	Stored []models.Contact
	nextID int64
	Err    error
}

func (m *MockContactRepo) CreateContact(ctx context.Context, c *models.Contact) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.nextID++
	cp := *c
	cp.ID = m.nextID
	m.Stored = append(m.Stored, cp)
	return cp.ID, nil
}

func (m *MockContactRepo) GetContact(ctx context.Context, id int64) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, c := range m.Stored {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MockContactRepo) ListContacts(ctx context.Context, q models.Query) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	q = q.Normalize()
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := []models.Contact{}
	for _, c := range m.Stored {
		if q.Service != models.ServiceAll && c.Service != q.Service {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Name+" "+c.Email+" "+c.Service), needle) {
			continue
		}
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b models.Contact) int {
		if q.SortBy == models.SortOldest {
			return a.CreatedAt.Compare(b.CreatedAt.Time)
		}
		return b.CreatedAt.Compare(a.CreatedAt.Time)
	})
	return out, nil
}

func (m *MockContactRepo) DeleteContact(ctx context.Context, id int64) (bool, error) {
	n, err := m.DeleteContacts(ctx, []int64{id})
	return n > 0, err
}

func (m *MockContactRepo) DeleteContacts(ctx context.Context, ids []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	before := len(m.Stored)
	m.Stored = slices.DeleteFunc(m.Stored, func(c models.Contact) bool {
		return slices.Contains(ids, c.ID)
	})
	return int64(before - len(m.Stored)), nil
}

func (m *MockContactRepo) SetRead(ctx context.Context, id int64, read bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	for i := range m.Stored {
		if m.Stored[i].ID == id {
			m.Stored[i].IsRead = read
			return true, nil
		}
	}
	return false, nil
}

func (m *MockContactRepo) CountContacts(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return int64(len(m.Stored)), nil
}

type MockAdminRepo struct {
	Stored    *models.Admin
	CreateErr error
}

func (m *MockAdminRepo) CreateAdmin(ctx context.Context, a *models.Admin) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.Stored = &models.Admin{ID: 1, Name: a.Name, Email: a.Email, PasswordHash: a.PasswordHash, IsAdmin: a.IsAdmin}
	return 1, nil
}

func (m *MockAdminRepo) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	if m.Stored != nil && m.Stored.Email == email {
		return m.Stored, nil
	}
	return nil, nil
}

func (m *MockAdminRepo) GetAdminByID(ctx context.Context, id int64) (*models.Admin, error) {
	if m.Stored != nil && m.Stored.ID == id {
		return m.Stored, nil
	}
	return nil, nil
}

type MockTokenRepo struct {
	mu      sync.Mutex
	revoked map[string]int64
}

func (m *MockTokenRepo) RevokeToken(ctx context.Context, jti string, expires int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = map[string]int64{}
	}
	m.revoked[jti] = expires
	return nil
}

func (m *MockTokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

func (m *MockTokenRepo) PurgeExpired(ctx context.Context, now int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, exp := range m.revoked {
		if exp <= now {
			delete(m.revoked, k)
			n++
		}
	}
	return n, nil
}
