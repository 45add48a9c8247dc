// Package session holds the ephemeral association between an opaque client
// token and an authenticated identity. Sessions live only in process memory;
// they are created on login or registration and destroyed on logout or
// expiry. The manager never touches identity or registry state.
package session

import (
	"sync"
	"time"

	"newhope.org/internal/identity"
	"newhope.org/internal/ids"
)

// DefaultTTL bounds a session's lifetime when no TTL is configured.
const DefaultTTL = 12 * time.Hour

// UserView is the public projection of an identity carried by a session.
// The credential secret never enters a session.
type UserView struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Role  identity.Role `json:"role"`
}

type entry struct {
	user      UserView
	expiresAt time.Time
}

// Manager issues and resolves opaque session tokens.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]entry
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures Manager behavior.
type Option func(*Manager)

// WithTTL overrides the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager creates a session manager and starts its expiry sweeper.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]entry),
		ttl:      DefaultTTL,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweepLoop()
	return m
}

// Create opens a session for the user and returns the opaque token.
func (m *Manager) Create(user UserView) string {
	token := ids.New()
	m.mu.Lock()
	m.sessions[token] = entry{user: user, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return token
}

// Get resolves a token to its user. Expired sessions are removed on sight.
func (m *Manager) Get(token string) (UserView, bool) {
	if token == "" {
		return UserView{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[token]
	if !ok {
		return UserView{}, false
	}
	if m.now().After(e.expiresAt) {
		delete(m.sessions, token)
		return UserView{}, false
	}
	return e.user, true
}

// Destroy ends the session; absent tokens are a no-op.
func (m *Manager) Destroy(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// DestroyByUser ends every session held by the given identity. Called when
// an admin deletes a patient so the deleted account cannot keep acting.
func (m *Manager) DestroyByUser(userID int64) {
	m.mu.Lock()
	for token, e := range m.sessions {
		if e.user.ID == userID {
			delete(m.sessions, token)
		}
	}
	m.mu.Unlock()
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the expiry sweeper.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for token, e := range m.sessions {
				if now.After(e.expiresAt) {
					delete(m.sessions, token)
				}
			}
			m.mu.Unlock()
		}
	}
}
