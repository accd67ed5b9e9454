package todo

import (
	"context"
	"testing"
)

func TestMemoryStore_SetAndGet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	items := []Item{{ID: "1", Content: "write tests", Status: "pending", Priority: "high"}}
	if err := s.Set(ctx, "sess1", items); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "sess1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestMemoryStore_EmptySessionIDIsNoOp(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "", []Item{{ID: "1"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for empty sessionID, got %+v", got)
	}
}

func TestMemoryStore_GetUnknownSession(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	got, err := s.Get(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestMemoryStore_SetDefensiveCopy(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	original := []Item{{ID: "1", Content: "original"}}
	s.Set(ctx, "sess1", original)
	original[0].Content = "mutated"

	got, _ := s.Get(ctx, "sess1")
	if got[0].Content != "original" {
		t.Errorf("Set should defensively copy, got %q", got[0].Content)
	}
}

func TestItem_Normalize(t *testing.T) {
	it := Item{ID: "1", Content: "x"}.Normalize()
	if it.Priority != "medium" || it.Status != "pending" {
		t.Errorf("unexpected normalized item: %+v", it)
	}
}

func TestCountItems(t *testing.T) {
	items := []Item{
		{Status: "pending"}, {Status: "pending"}, {Status: "in_progress"}, {Status: "completed"},
	}
	c := countItems(items)
	if c.Pending != 2 || c.InProgress != 1 || c.Completed != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
}
