package session

import (
	"context"
	"testing"
	"time"

	"newhope.org/internal/identity"
)

func TestCreateGetDestroy(t *testing.T) {
	m := NewManager()
	defer m.Close()

	user := UserView{ID: 2, Name: "Ann", Email: "ann@x.com", Role: identity.RolePatient}
	token := m.Create(user)
	if token == "" {
		t.Fatal("empty session token")
	}

	got, ok := m.Get(token)
	if !ok || got != user {
		t.Fatalf("session lookup failed: %+v ok=%v", got, ok)
	}

	m.Destroy(token)
	if _, ok := m.Get(token); ok {
		t.Fatal("destroyed session still resolves")
	}
	// Destroying again is a no-op.
	m.Destroy(token)
}

func TestGetUnknownToken(t *testing.T) {
	m := NewManager()
	defer m.Close()

	if _, ok := m.Get(""); ok {
		t.Fatal("empty token resolved")
	}
	if _, ok := m.Get("01ARZ3NDEKTSV4RRFFQ69G5FAV"); ok {
		t.Fatal("unknown token resolved")
	}
}

func TestExpiry(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(
		WithTTL(time.Hour),
		WithClock(func() time.Time { return current }),
	)
	defer m.Close()

	token := m.Create(UserView{ID: 1, Role: identity.RoleAdmin})
	if _, ok := m.Get(token); !ok {
		t.Fatal("fresh session not found")
	}

	current = current.Add(2 * time.Hour)
	if _, ok := m.Get(token); ok {
		t.Fatal("expired session still resolves")
	}
	if m.Len() != 0 {
		t.Fatalf("expired session not evicted, len=%d", m.Len())
	}
}

func TestDestroyByUser(t *testing.T) {
	m := NewManager()
	defer m.Close()

	t1 := m.Create(UserView{ID: 2, Role: identity.RolePatient})
	t2 := m.Create(UserView{ID: 2, Role: identity.RolePatient})
	t3 := m.Create(UserView{ID: 3, Role: identity.RolePatient})

	m.DestroyByUser(2)
	if _, ok := m.Get(t1); ok {
		t.Fatal("session t1 survived DestroyByUser")
	}
	if _, ok := m.Get(t2); ok {
		t.Fatal("session t2 survived DestroyByUser")
	}
	if _, ok := m.Get(t3); !ok {
		t.Fatal("unrelated session was destroyed")
	}
}

func TestContextCarriage(t *testing.T) {
	ctx := context.Background()
	if _, ok := UserFromContext(ctx); ok {
		t.Fatal("empty context produced a user")
	}

	user := UserView{ID: 5, Name: "Ann", Role: identity.RolePatient}
	ctx = ContextWithUser(ctx, user)
	ctx = ContextWithToken(ctx, "tok-1")

	got, ok := UserFromContext(ctx)
	if !ok || got != user {
		t.Fatalf("user round trip failed: %+v ok=%v", got, ok)
	}
	tok, ok := TokenFromContext(ctx)
	if !ok || tok != "tok-1" {
		t.Fatalf("token round trip failed: %q ok=%v", tok, ok)
	}
}
