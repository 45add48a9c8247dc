package board

import (
	"context"
	"errors"
	"testing"
)

func TestPostValidatesFields(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.Post(ctx, "", "body"); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField for empty title, got %v", err)
	}
	if _, err := s.Post(ctx, "title", "  "); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField for blank content, got %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Fatalf("failed post created an announcement: %+v", list)
	}
}

func TestListMostRecentFirst(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	a, err := s.Post(ctx, "A", "first notice")
	if err != nil {
		t.Fatalf("post A: %v", err)
	}
	b, err := s.Post(ctx, "B", "second notice")
	if err != nil {
		t.Fatalf("post B: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("expected [B A], got %+v", list)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	ann, _ := s.Post(ctx, "A", "notice")
	if err := s.Remove(ctx, ann.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, ann.ID); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	if err := s.Remove(ctx, 42); err != nil {
		t.Fatalf("unknown id should be a no-op: %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty board, got %+v", list)
	}
}
