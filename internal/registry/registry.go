package registry

import (
	"context"
	"errors"
	"sync"
)

// StatusPending is the lifecycle label assigned to every new admission.
const StatusPending = "Pending admission"

// Record is an admission case owned 1:1 by a patient identity.
type Record struct {
	ID       int64  `json:"id"`
	OwnerID  int64  `json:"owner_id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Reason   string `json:"reason"`
	Status   string `json:"status"`
}

var ErrNotFound = errors.New("patient record not found")

// Store defines admission record operations.
//
// SetStatus and Delete deliberately absorb unknown ids: stale or malformed
// admin requests are dropped, not reported.
type Store interface {
	Admit(ctx context.Context, ownerID int64, fullName, phone, address, reason string) (Record, error)
	FindByOwner(ctx context.Context, ownerID int64) (Record, error)
	List(ctx context.Context) ([]Record, error)
	SetStatus(ctx context.Context, id int64, status string) error
	// Delete removes the record and reports its owner so the caller can
	// cascade. ok is false when the id did not resolve.
	Delete(ctx context.Context, id int64) (ownerID int64, ok bool, err error)
}

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu     sync.RWMutex
	byID   map[int64]Record
	order  []int64
	nextID int64
}

// NewInMemory creates an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[int64]Record)}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) Admit(ctx context.Context, ownerID int64, fullName, phone, address, reason string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec := Record{
		ID:       s.nextID,
		OwnerID:  ownerID,
		FullName: fullName,
		Phone:    phone,
		Address:  address,
		Reason:   reason,
		Status:   StatusPending,
	}
	s.byID[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return rec, nil
}

func (s *InMemory) FindByOwner(ctx context.Context, ownerID int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if rec := s.byID[id]; rec.OwnerID == ownerID {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

// List returns all records in admission order.
func (s *InMemory) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

func (s *InMemory) SetStatus(ctx context.Context, id int64, status string) error {
	if status == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil
	}
	rec.Status = status
	s.byID[id] = rec
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return 0, false, nil
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return rec.OwnerID, true, nil
}
