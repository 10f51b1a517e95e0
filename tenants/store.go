package tenants

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors callers branch on.
var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmailTaken       = errors.New("email already registered")
)

// Store manages tenant, user and document persistence.
type Store interface {
	CreateTenant(t *Tenant) error
	GetTenant(id string) (*Tenant, error)
	ListTenants() ([]*Tenant, error)

	CreateUser(u *User) error
	GetUser(id string) (*User, error)
	GetUserByEmail(email string) (*User, error)

	CreateDocument(d *Document) error
	GetDocument(tenantID, id string) (*Document, error)
	ListDocuments(tenantID string) ([]*Document, error)
	DeleteDocument(tenantID, id string) error
}

// InMemoryStore implements Store with maps. It backs tests and local runs
// without a database.
type InMemoryStore struct {
	mu        sync.RWMutex
	tenants   map[string]*Tenant
	users     map[string]*User
	documents map[string]*Document
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tenants:   make(map[string]*Tenant),
		users:     make(map[string]*User),
		documents: make(map[string]*Document),
	}
}

// CreateTenant stores a new tenant, assigning an ID and timestamps.
func (s *InMemoryStore) CreateTenant(t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, exists := s.tenants[t.ID]; exists {
		return fmt.Errorf("tenant with ID %s already exists", t.ID)
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tenants[t.ID] = t
	return nil
}

func (s *InMemoryStore) GetTenant(id string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
	}
	return t, nil
}

func (s *InMemoryStore) ListTenants() ([]*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CreateUser stores a new user; emails are unique case-insensitively.
func (s *InMemoryStore) CreateUser(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == email {
			return fmt.Errorf("%w: %s", ErrEmailTaken, u.Email)
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = email
	u.CreatedAt = time.Now()
	s.users[u.ID] = u
	return nil
}

func (s *InMemoryStore) GetUser(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return u, nil
}

func (s *InMemoryStore) GetUserByEmail(email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
}

func (s *InMemoryStore) CreateDocument(d *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now()
	s.documents[d.ID] = d
	return nil
}

func (s *InMemoryStore) GetDocument(tenantID, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok || d.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return d, nil
}

func (s *InMemoryStore) ListDocuments(tenantID string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Document, 0)
	for _, d := range s.documents {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteDocument(tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.documents[id]
	if !ok || d.TenantID != tenantID {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	delete(s.documents, id)
	return nil
}
