package task_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/taskyard/taskyard/internal/log"
	"github.com/taskyard/taskyard/internal/task"
	"github.com/taskyard/taskyard/internal/testutil"
)

func setupStore(t *testing.T) *task.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	store, err := task.NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStore_AddListRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, "alice", "  Buy milk  ", " weekly shopping ")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if created.Title != "Buy milk" {
		t.Errorf("title = %q, want trimmed %q", created.Title, "Buy milk")
	}
	if created.Description != "weekly shopping" {
		t.Errorf("description = %q, want trimmed %q", created.Description, "weekly shopping")
	}
	if created.Completed {
		t.Error("new task should not be completed")
	}

	tasks, err := store.List(ctx, "alice", task.FilterAll)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(tasks))
	}
	if tasks[0].ID != created.ID {
		t.Errorf("listed id = %v, want %v", tasks[0].ID, created.ID)
	}
}

func TestStore_ListFiltersAndOrder(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, "alice", "first", "")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	second, err := store.Add(ctx, "alice", "second", "")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if _, err := store.CompleteByTitle(ctx, "alice", "first"); err != nil {
		t.Fatalf("CompleteByTitle() error = %v", err)
	}

	all, err := store.List(ctx, "alice", task.FilterAll)
	if err != nil {
		t.Fatalf("List(all) error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}
	// Newest first.
	if all[0].ID != second.ID || all[1].ID != first.ID {
		t.Errorf("list order = [%v %v], want [%v %v]", all[0].ID, all[1].ID, second.ID, first.ID)
	}

	completed, err := store.List(ctx, "alice", task.FilterCompleted)
	if err != nil {
		t.Fatalf("List(completed) error = %v", err)
	}
	if len(completed) != 1 || completed[0].ID != first.ID {
		t.Errorf("completed filter returned %d tasks", len(completed))
	}

	incomplete, err := store.List(ctx, "alice", task.FilterIncomplete)
	if err != nil {
		t.Fatalf("List(incomplete) error = %v", err)
	}
	if len(incomplete) != 1 || incomplete[0].ID != second.ID {
		t.Errorf("incomplete filter returned %d tasks", len(incomplete))
	}
}

func TestStore_UserIsolation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, "alice", "private task", "")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Another user never sees it, by id or by title.
	if _, err := store.Get(ctx, created.ID, "bob"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("Get() as bob error = %v, want ErrNotFound", err)
	}
	if _, err := store.CompleteByTitle(ctx, "bob", "private task"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("CompleteByTitle() as bob error = %v, want ErrNotFound", err)
	}
	if _, err := store.DeleteByTitle(ctx, "bob", "private task"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("DeleteByTitle() as bob error = %v, want ErrNotFound", err)
	}

	tasks, err := store.List(ctx, "bob", task.FilterAll)
	if err != nil {
		t.Fatalf("List() as bob error = %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("bob sees %d of alice's tasks", len(tasks))
	}

	// Still intact for the owner.
	got, err := store.Get(ctx, created.ID, "alice")
	if err != nil {
		t.Fatalf("Get() as alice error = %v", err)
	}
	if got.Completed {
		t.Error("task mutated by foreign user")
	}
}

func TestStore_TitleMatchCaseInsensitive(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "alice", "Buy Milk", ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := store.CompleteByTitle(ctx, "alice", "  buy milk ")
	if err != nil {
		t.Fatalf("CompleteByTitle() error = %v", err)
	}
	if !got.Completed {
		t.Error("task not marked completed")
	}
	if got.Title != "Buy Milk" {
		t.Errorf("stored title = %q, want original casing preserved", got.Title)
	}
}

func TestStore_DuplicateTitlesResolveOldest(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, "alice", "laundry", "first copy")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := store.Add(ctx, "alice", "Laundry", "second copy"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := store.CompleteByTitle(ctx, "alice", "laundry")
	if err != nil {
		t.Fatalf("CompleteByTitle() error = %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("completed id = %v, want oldest %v", got.ID, first.ID)
	}
}

func TestStore_UpdateByTitle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "alice", "old title", "old desc"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	newTitle := "new title"
	got, err := store.UpdateByTitle(ctx, "alice", "old title", &newTitle, nil)
	if err != nil {
		t.Fatalf("UpdateByTitle() error = %v", err)
	}
	if got.Title != "new title" {
		t.Errorf("title = %q, want %q", got.Title, "new title")
	}
	if got.Description != "old desc" {
		t.Errorf("description = %q, want unchanged %q", got.Description, "old desc")
	}

	// Miss leaves everything untouched.
	if _, err := store.UpdateByTitle(ctx, "alice", "no such task", &newTitle, nil); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("UpdateByTitle() miss error = %v, want ErrNotFound", err)
	}
}

func TestStore_CompleteIsIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "alice", "done twice", ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := store.CompleteByTitle(ctx, "alice", "done twice")
		if err != nil {
			t.Fatalf("CompleteByTitle() #%d error = %v", i+1, err)
		}
		if !got.Completed {
			t.Fatalf("CompleteByTitle() #%d left task incomplete", i+1)
		}
	}
}

func TestStore_DeleteByTitle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "alice", "Throwaway", ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	title, err := store.DeleteByTitle(ctx, "alice", "throwaway")
	if err != nil {
		t.Fatalf("DeleteByTitle() error = %v", err)
	}
	if title != "Throwaway" {
		t.Errorf("deleted title = %q, want stored casing %q", title, "Throwaway")
	}

	tasks, err := store.List(ctx, "alice", task.FilterAll)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("len(tasks) = %d after delete, want 0", len(tasks))
	}
}

func TestStore_DeleteMissingID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Delete(ctx, uuid.New(), "alice"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}
