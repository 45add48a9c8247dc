package board

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Announcement is an admin-authored notice. Immutable after creation.
type Announcement struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

var ErrMissingField = errors.New("title and content are required")

// Store defines announcement operations. List returns most recent first.
type Store interface {
	Post(ctx context.Context, title, content string) (Announcement, error)
	Remove(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Announcement, error)
}

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu     sync.RWMutex
	items  []Announcement
	nextID int64
	now    func() time.Time
}

// NewInMemory creates an empty board.
func NewInMemory() *InMemory {
	return &InMemory{now: time.Now}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) Post(ctx context.Context, title, content string) (Announcement, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return Announcement{}, ErrMissingField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	ann := Announcement{
		ID:        s.nextID,
		Title:     title,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	// Newest entries go to the front.
	s.items = append([]Announcement{ann}, s.items...)
	return ann, nil
}

func (s *InMemory) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ann := range s.items {
		if ann.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *InMemory) List(ctx context.Context) ([]Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Announcement, len(s.items))
	copy(out, s.items)
	return out, nil
}
