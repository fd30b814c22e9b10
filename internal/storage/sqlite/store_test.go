package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"taskboard/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "nested", "tasks.db"), nil)
	if err != nil {
		t.Fatalf("Open() err=%v, want nil", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func sampleTask(id string) models.Task {
	return models.Task{
		ID:          id,
		BookingID:   "booking-1",
		Title:       "Inspect panel",
		Description: "Check every breaker",
		Status:      models.StatusNotStarted,
		Priority:    models.PriorityHigh,
		DueDate:     time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
		Tags:        []string{"safety", "work"},
		CreatedAt:   time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("", nil); err == nil {
		t.Fatalf("Open(\"\") err=nil, want non-nil")
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	in := sampleTask("t1")
	in.EstimatedHours = models.Float(2.5)
	if err := store.SaveTask(ctx, "p1", in); err != nil {
		t.Fatalf("SaveTask() err=%v, want nil", err)
	}

	got, err := store.GetTask(ctx, "p1", "t1")
	if err != nil {
		t.Fatalf("GetTask() err=%v, want nil", err)
	}
	if got.Title != in.Title || got.BookingID != in.BookingID || got.Status != in.Status || got.Priority != in.Priority {
		t.Fatalf("GetTask() = %+v", got)
	}
	if !got.DueDate.Equal(in.DueDate) || !got.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("GetTask() dates = %v / %v", got.DueDate, got.CreatedAt)
	}
	if got.EstimatedHours == nil || *got.EstimatedHours != 2.5 {
		t.Fatalf("GetTask() estimated = %v, want 2.5", got.EstimatedHours)
	}
	if got.CompletedAt != nil {
		t.Fatalf("GetTask() completed_at = %v, want nil", got.CompletedAt)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "safety" {
		t.Fatalf("GetTask() tags = %v", got.Tags)
	}

	if _, err := store.GetTask(ctx, "p2", "t1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetTask(other provider) err=%v, want %v", err, models.ErrNotFound)
	}
}

func TestStore_Upsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	in := sampleTask("t1")
	_ = store.SaveTask(ctx, "p1", in)

	completed := time.Date(2026, 6, 2, 12, 0, 0, 0, time.UTC)
	in.Status = models.StatusCompleted
	in.CompletedAt = &completed
	in.ActualHours = 1.75
	in.BookingID = "other"
	if err := store.SaveTask(ctx, "p1", in); err != nil {
		t.Fatalf("SaveTask() err=%v, want nil", err)
	}

	got, _ := store.GetTask(ctx, "p1", "t1")
	if got.Status != models.StatusCompleted || got.ActualHours != 1.75 {
		t.Fatalf("GetTask() = %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Fatalf("GetTask() completed_at = %v, want %v", got.CompletedAt, completed)
	}
	if got.BookingID != "booking-1" {
		t.Fatalf("booking id was rewritten to %q", got.BookingID)
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, id := range []string{"c", "a", "b"} {
		if err := store.SaveTask(ctx, "p1", sampleTask(id)); err != nil {
			t.Fatalf("SaveTask(%s) err=%v", id, err)
		}
	}
	_ = store.SaveTask(ctx, "p2", sampleTask("z"))

	if err := store.DeleteTask(ctx, "p1", "a"); err != nil {
		t.Fatalf("DeleteTask() err=%v, want nil", err)
	}
	if err := store.DeleteTask(ctx, "p1", "missing"); err != nil {
		t.Fatalf("DeleteTask(missing) err=%v, want nil", err)
	}

	tasks, err := store.ListTasks(ctx, "p1")
	if err != nil {
		t.Fatalf("ListTasks() err=%v, want nil", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "c" || tasks[1].ID != "b" {
		t.Fatalf("ListTasks() = %v, want [c b]", tasks)
	}
}
