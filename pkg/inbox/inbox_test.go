package inbox

import (
	"context"
	"testing"
	"time"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/store"
)

// clock hands out increasing instants one minute apart.
func clock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Minute)
		return now
	}
}

func newInbox() (*Inbox, *store.Memory) {
	mem := store.NewMemory()
	return &Inbox{Store: mem, Now: clock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))}, mem
}

func TestCreateAndGet(t *testing.T) {
	in, _ := newInbox()
	ctx := context.Background()
	due := time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)
	id, err := in.Create(ctx, "u1", NewTask{Title: "  Buy milk ", Description: "2%", Due: due})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	task, err := in.Get(ctx, "u1", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if task.Title != "Buy milk" || task.Description != "2%" || task.OwnerID != "u1" {
		t.Fatalf("unexpected task %+v", task)
	}
	if !task.HasDue() || !task.Due.Equal(due) {
		t.Fatalf("due = %v", task.Due)
	}
	if task.CreatedAt.IsZero() {
		t.Fatal("created at must be stamped")
	}
}

func TestCreateValidation(t *testing.T) {
	tests := map[string]struct {
		user  string
		title string
	}{
		"empty title":  {user: "u1", title: "  "},
		"missing user": {user: "", title: "call mom"},
		"nested user":  {user: "u1/todos", title: "call mom"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			in, mem := newInbox()
			_, err := in.Create(context.Background(), tc.user, NewTask{Title: tc.title})
			if !errs.Is(err, errs.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if paths := mem.Paths(""); len(paths) != 0 {
				t.Fatalf("nothing may be written, got %v", paths)
			}
		})
	}
}

func TestListOldestFirst(t *testing.T) {
	in, _ := newInbox()
	ctx := context.Background()
	for _, title := range []string{"first", "second", "third"} {
		if _, err := in.Create(ctx, "u1", NewTask{Title: title}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	if _, err := in.Create(ctx, "u2", NewTask{Title: "someone else"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	tasks, err := in.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := titles(tasks); len(got) != 3 || got[0] != "first" || got[1] != "second" || got[2] != "third" {
		t.Fatalf("got %v", got)
	}
}

func TestSubscribeFollowsInbox(t *testing.T) {
	in, _ := newInbox()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keep, _ := in.Create(ctx, "u1", NewTask{Title: "keep"})
	ch, err := in.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitTasks(t, ch, func(tasks []model.Task) bool { return len(tasks) == 1 && tasks[0].ID == keep })

	drop, _ := in.Create(ctx, "u1", NewTask{Title: "drop"})
	waitTasks(t, ch, func(tasks []model.Task) bool {
		got := titles(tasks)
		return len(got) == 2 && got[0] == "keep" && got[1] == "drop"
	})

	if err := in.Delete(ctx, "u1", drop); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitTasks(t, ch, func(tasks []model.Task) bool { return len(tasks) == 1 && tasks[0].ID == keep })

	cancel()
	for range ch {
	}
}

func TestDeleteMissingSucceeds(t *testing.T) {
	in, _ := newInbox()
	if err := in.Delete(context.Background(), "u1", "nope"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	in, _ := newInbox()
	_, err := in.Get(context.Background(), "u1", "nope")
	if !errs.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	in, mem := newInbox()
	mem.SetUnavailable(true)
	_, err := in.Create(context.Background(), "u1", NewTask{Title: "call mom"})
	if !errs.IsRetryable(err) {
		t.Fatalf("expected a retryable error, got %v", err)
	}
}

func titles(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func waitTasks(t *testing.T, ch <-chan []model.Task, match func([]model.Task) bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case tasks, ok := <-ch:
			if !ok {
				t.Fatal("subscription closed")
			}
			if match(tasks) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for tasks")
		}
	}
}
