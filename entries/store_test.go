package entries

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(":memory:", "tester")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreCreateAndList(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "Dentist", "2024-06-20")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(first.ID) != 26 {
		t.Errorf("id = %q, want 26-char ulid", first.ID)
	}
	second, _ := s.Create(ctx, "Standup", "2024-06-20")
	third, _ := s.Create(ctx, "Review", "2024-06-25")

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	wantOrder := []string{third.ID, second.ID, first.ID}
	if len(list) != len(wantOrder) {
		t.Fatalf("len(list) = %d, want %d", len(list), len(wantOrder))
	}
	for i, id := range wantOrder {
		if list[i].ID != id {
			t.Errorf("list[%d].ID = %s, want %s (%+v)", i, list[i].ID, id, list)
		}
	}
}

func TestStoreListByDate(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	s.Create(ctx, "Dentist", "2024-06-20")
	s.Create(ctx, "Review", "2024-06-25")

	list, err := s.ListByDate(ctx, "2024-06-20")
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Dentist" {
		t.Errorf("list = %+v", list)
	}

	empty, err := s.ListByDate(ctx, "2030-01-01")
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no entries, got %+v", empty)
	}
}

func TestStoreEvents(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	s.Create(ctx, "Dentist", "2024-06-20")
	events, err := s.Events(ctx)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d", len(events))
	}
	ev := events[0]
	if ev.Title != "Dentist" || ev.Date != "2024-06-20" {
		t.Errorf("event = %+v", ev)
	}
	if ev.BackgroundColor != "#6366f1" || ev.BorderColor != "#4f46e5" {
		t.Errorf("event colors = %q/%q", ev.BackgroundColor, ev.BorderColor)
	}
}

func TestStoreDelete(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	e, _ := s.Create(ctx, "Dentist", "2024-06-20")
	if err := s.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Errorf("entries remain after delete: %+v", list)
	}
}

func TestStoreOwnerScoping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.db")
	ctx := context.Background()

	mine, err := OpenStore(path, "me")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer mine.Close()
	theirs, err := OpenStore(path, "them")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer theirs.Close()

	e, err := mine.Create(ctx, "Private", "2024-06-20")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := theirs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("other owner sees %+v", list)
	}
	if err := theirs.Delete(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-owner Delete = %v, want ErrNotFound", err)
	}
}

func TestSubmitter(t *testing.T) {
	s := memStore(t)
	sub := NewSubmitter(s)
	ctx := context.Background()

	e, err := sub.Submit(ctx, "  Meeting  ", "2024-06-20")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if e.Title != "Meeting" {
		t.Errorf("title = %q, want trimmed", e.Title)
	}

	_, err = sub.Submit(ctx, "", "2024-06-20")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Messages) != 1 || verr.Messages[0] != "Title is required." {
		t.Errorf("messages = %v", verr.Messages)
	}

	list, _ := s.List(ctx)
	if len(list) != 1 {
		t.Errorf("rejected submit must not persist, list = %+v", list)
	}
}
