package identity

import (
	"context"
	"strings"
	"sync"
)

// Store defines identity operations used by the portal service.
type Store interface {
	// Register creates a patient identity after validating the input.
	Register(ctx context.Context, name, email, secret string) (Identity, error)
	// Seed creates the administrator identity at process start.
	Seed(ctx context.Context, name, email, secret string) (Identity, error)
	Authenticate(ctx context.Context, email, secret string) (Identity, error)
	FindByEmail(ctx context.Context, email string) (Identity, error)
	FindByID(ctx context.Context, id int64) (Identity, error)
	// RemoveByID deletes the identity if present; absent ids are a no-op.
	RemoveByID(ctx context.Context, id int64) error
}

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[int64]Identity
	byEmail map[string]int64
	nextID  int64
}

// NewInMemory creates an empty identity store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[int64]Identity),
		byEmail: make(map[string]int64),
	}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) Register(ctx context.Context, name, email, secret string) (Identity, error) {
	return s.create(name, email, secret, RolePatient)
}

func (s *InMemory) Seed(ctx context.Context, name, email, secret string) (Identity, error) {
	return s.create(name, email, secret, RoleAdmin)
}

func (s *InMemory) create(name, email, secret string, role Role) (Identity, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || secret == "" {
		return Identity{}, ErrMissingField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Email uniqueness is case-sensitive: the stored value must match exactly.
	if _, exists := s.byEmail[email]; exists {
		return Identity{}, ErrDuplicateEmail
	}

	s.nextID++
	id := Identity{
		ID:     s.nextID,
		Name:   name,
		Email:  email,
		Secret: secret,
		Role:   role,
	}
	s.byID[id.ID] = id
	s.byEmail[email] = id.ID
	return id, nil
}

func (s *InMemory) Authenticate(ctx context.Context, email, secret string) (Identity, error) {
	email = strings.TrimSpace(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return Identity{}, ErrInvalidCredentials
	}
	stored := s.byID[id]
	if !VerifySecret(stored.Secret, secret) {
		return Identity{}, ErrInvalidCredentials
	}
	return stored, nil
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.TrimSpace(email)]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *InMemory) FindByID(ctx context.Context, id int64) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.byID[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return stored, nil
}

func (s *InMemory) RemoveByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[id]
	if !ok {
		return nil
	}
	delete(s.byID, id)
	delete(s.byEmail, stored.Email)
	return nil
}

// VerifySecret is the single credential comparison point, shared by every
// Store implementation. Plain comparison matches the stored-secret contract;
// swap the body to add hashing.
func VerifySecret(stored, presented string) bool {
	return stored == presented
}
