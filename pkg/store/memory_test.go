package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"tableflip.dev/taskly/pkg/errs"
)

func TestMemorySubscribeDeliversCurrentThenChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory()

	if err := m.Set(ctx, "users/u1/todos/a", map[string]any{"title": "a"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	ch, err := m.Subscribe(ctx, Query{Collection: TodosPath("u1")})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSnapshot(t, ch, hasIDs("a"))

	if err := m.Set(ctx, "users/u1/todos/b", map[string]any{"title": "b"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	waitSnapshot(t, ch, hasIDs("a", "b"))

	if err := m.Delete(ctx, "users/u1/todos/a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitSnapshot(t, ch, hasIDs("b"))
}

func TestMemorySubscriptionClosesWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()
	ch, err := m.Subscribe(ctx, Query{Collection: CalendarsPath()})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	<-ch
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestMemoryArrayContainsFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "calendars/c1", map[string]any{"members": []string{"ann@example.com"}})
	_ = m.Set(ctx, "calendars/c2", map[string]any{"members": []string{"bob@example.com"}})

	ch, err := m.Subscribe(ctx, Query{
		Collection: CalendarsPath(),
		Filters:    []Filter{Where("members", OpArrayContains, "bob@example.com")},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSnapshot(t, ch, hasIDs("c2"))

	if err := m.Update(ctx, "calendars/c1", Patch{"members": ArrayUnion("bob@example.com")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	waitSnapshot(t, ch, hasIDs("c1", "c2"))
}

func TestMemoryDeepQuerySeesSubcollectionChanges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, EventPath("c1", "e1"), map[string]any{"title": "standup"})

	deep, err := m.Subscribe(ctx, Query{Collection: EventsPath("c1"), Deep: true})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	<-deep

	if err := m.Set(ctx, SubtaskPath("c1", "e1", "s1"), map[string]any{"title": "notes"}); err != nil {
		t.Fatalf("set subtask: %v", err)
	}
	select {
	case snap := <-deep:
		if len(snap.Docs) != 1 {
			t.Fatalf("expected the event listing, got %v", snap.IDs())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("deep query not re-delivered on subtask change")
	}
}

func TestMemorySlowConsumerGetsLatest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ch, err := m.Subscribe(ctx, Query{Collection: TodosPath("u1")})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// Nobody reads while 50 writes happen; none of them may block.
	for i := 0; i < 50; i++ {
		if err := m.Set(ctx, TodoPath("u1", fmt.Sprintf("t%02d", i)), map[string]any{"title": i}); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	snap := <-ch
	if len(snap.Docs) != 50 {
		t.Fatalf("expected latest snapshot with 50 docs, got %d", len(snap.Docs))
	}
}

func TestMemoryConcurrentWritersConverge(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a, _ := m.Subscribe(ctx, Query{Collection: EventsPath("c1")})
	b, _ := m.Subscribe(ctx, Query{Collection: EventsPath("c1")})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = m.Set(ctx, EventPath("c1", fmt.Sprintf("w%d-%d", w, i)), map[string]any{"title": "x"})
			}
		}(w)
	}
	wg.Wait()

	full := func(s Snapshot) bool { return len(s.Docs) == 40 }
	waitSnapshot(t, a, full)
	waitSnapshot(t, b, full)
}

func TestMemoryUpdateMissingIsNotFound(t *testing.T) {
	m := NewMemory()
	err := m.Update(context.Background(), "calendars/nope", Patch{"name": "x"})
	if !errs.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if errs.Is(err, errs.ErrStoreUnavailable) {
		t.Fatalf("not found must not classify as unavailable")
	}
}

func TestMemoryDeleteIsIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Delete(ctx, "calendars/nope"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestMemoryPutGeneratesIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	doc, err := m.Put(ctx, TodosPath("u1"), map[string]any{"title": "milk"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if doc.ID == "" || doc.Path != TodoPath("u1", doc.ID) {
		t.Fatalf("unexpected document %+v", doc)
	}
	got, err := m.Get(ctx, doc.Path)
	if err != nil || got.Fields["title"] != "milk" {
		t.Fatalf("get: %+v %v", got, err)
	}
}

func TestMemoryFailNext(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.FailNext(MethodDelete, "calendars/c1/events", nil)

	if err := m.Delete(ctx, "calendars/c1"); err != nil {
		t.Fatalf("unrelated path must not fail: %v", err)
	}
	err := m.Delete(ctx, EventPath("c1", "e1"))
	if !errs.Is(err, errs.ErrStoreUnavailable) || !errs.Is(err, ErrInjected) {
		t.Fatalf("expected injected store failure, got %v", err)
	}
	if err := m.Delete(ctx, EventPath("c1", "e1")); err != nil {
		t.Fatalf("failure must be consumed: %v", err)
	}
}

func TestMemoryUnavailable(t *testing.T) {
	m := NewMemory()
	m.SetUnavailable(true)
	_, err := m.Put(context.Background(), CalendarsPath(), map[string]any{"name": "x"})
	if !errs.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestInvalidPathsRejected(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.Put(ctx, "calendars/c1", nil); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("document path as collection: %v", err)
	}
	if err := m.Set(ctx, "calendars", nil); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("collection path as document: %v", err)
	}
	if _, err := m.Get(ctx, "calendars//x"); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("empty segment: %v", err)
	}
}

func TestClosedMemoryEndsSubscriptions(t *testing.T) {
	m := NewMemory()
	ch, err := m.Subscribe(context.Background(), Query{Collection: CalendarsPath()})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	<-ch
	_ = m.Close()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if _, err := m.Get(context.Background(), "calendars/c1"); err == nil {
		t.Fatal("expected error after close")
	}
}
