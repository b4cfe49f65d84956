package db

import (
	"context"
	"testing"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/model"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	createdAt := time.Date(2026, 5, 1, 8, 30, 15, 123456789, time.Local)
	deadline := createdAt.Add(49 * time.Hour)
	tasks := []model.Task{
		{ID: "b", Text: "Buy milk", Category: model.CategoryShopping, CreatedAt: createdAt, Deadline: &deadline},
		{ID: "a", Text: "Ship report", Category: model.CategoryWork, Completed: true, CreatedAt: createdAt.Add(-time.Hour)},
	}

	if err := repo.Save(context.Background(), tasks); err != nil {
		t.Fatalf("save tasks: %v", err)
	}

	loaded := repo.Load(context.Background())
	if len(loaded) != len(tasks) {
		t.Fatalf("expected %d tasks, got %d", len(tasks), len(loaded))
	}
	for i, want := range tasks {
		got := loaded[i]
		if got.ID != want.ID || got.Text != want.Text || got.Category != want.Category || got.Completed != want.Completed {
			t.Fatalf("task %d mismatch: got %+v want %+v", i, got, want)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Fatalf("task %d createdAt: got %v want %v", i, got.CreatedAt, want.CreatedAt)
		}
		if (got.Deadline == nil) != (want.Deadline == nil) {
			t.Fatalf("task %d deadline presence mismatch", i)
		}
		if want.Deadline != nil && !got.Deadline.Equal(*want.Deadline) {
			t.Fatalf("task %d deadline: got %v want %v", i, got.Deadline, want.Deadline)
		}
	}
}

func TestSaveOverwritesPreviousRecord(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	ctx := context.Background()
	if err := repo.Save(ctx, []model.Task{{ID: "1", Text: "first"}, {ID: "2", Text: "second"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, []model.Task{{ID: "3", Text: "third"}}); err != nil {
		t.Fatalf("save again: %v", err)
	}

	loaded := repo.Load(ctx)
	if len(loaded) != 1 || loaded[0].ID != "3" {
		t.Fatalf("expected only the latest record, got %+v", loaded)
	}
}

func TestLoadMissingOrCorruptRecord(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	ctx := context.Background()
	if loaded := repo.Load(ctx); loaded == nil || len(loaded) != 0 {
		t.Fatalf("expected empty collection for missing record, got %v", loaded)
	}

	if err := repo.kv.Set(ctx, DefaultTasksKey, "{not json"); err != nil {
		t.Fatalf("set corrupt value: %v", err)
	}
	if loaded := repo.Load(ctx); len(loaded) != 0 {
		t.Fatalf("expected empty collection for corrupt record, got %v", loaded)
	}

	if err := repo.kv.Set(ctx, DefaultTasksKey, "null"); err != nil {
		t.Fatalf("set null value: %v", err)
	}
	if loaded := repo.Load(ctx); loaded == nil || len(loaded) != 0 {
		t.Fatalf("expected empty collection for null record, got %v", loaded)
	}
}

func TestLoadParsesTextualTimestamps(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	ctx := context.Background()
	raw := `[{"id":"1","text":"Call mom","category":"personal","completed":false,"createdAt":"2026-01-02T03:04:05Z","deadline":"2026-01-03T10:00:00Z"},
{"id":"2","text":"Notes","category":"other","completed":true,"createdAt":"2026-01-02T03:04:05Z","deadline":null}]`
	if err := repo.kv.Set(ctx, DefaultTasksKey, raw); err != nil {
		t.Fatalf("set raw value: %v", err)
	}

	loaded := repo.Load(ctx)
	if len(loaded) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(loaded))
	}
	wantDeadline := time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC)
	if loaded[0].Deadline == nil || !loaded[0].Deadline.Equal(wantDeadline) {
		t.Fatalf("expected deadline %v, got %v", wantDeadline, loaded[0].Deadline)
	}
	if loaded[1].Deadline != nil {
		t.Fatalf("expected nil deadline, got %v", loaded[1].Deadline)
	}
}

func TestKVDelete(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	ctx := context.Background()
	if err := repo.kv.Set(ctx, "theme", "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.kv.Delete(ctx, "theme"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := repo.kv.Get(ctx, "theme"); err != nil || ok {
		t.Fatalf("expected key to be gone, ok=%v err=%v", ok, err)
	}
}

func newTestRepository(t *testing.T) (*TaskRepository, func()) {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return NewTaskRepository(NewKV(db), ""), func() {
		_ = db.Close()
	}
}
