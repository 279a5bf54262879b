package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tableflip.dev/taskly/pkg/errs"
)

func TestSQLiteCRUD(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "taskly.db"), Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	doc, err := s.Put(ctx, TodosPath("u1"), map[string]any{"title": "milk"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Update(ctx, doc.Path, Patch{"description": "2%"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.Get(ctx, doc.Path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Fields["title"] != "milk" || got.Fields["description"] != "2%" {
		t.Fatalf("unexpected fields %v", got.Fields)
	}

	snap, err := s.ListAll(ctx, TodosPath("u1"))
	if err != nil || len(snap.Docs) != 1 {
		t.Fatalf("list: %v %v", snap.IDs(), err)
	}

	if err := s.Delete(ctx, doc.Path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, doc.Path); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := s.Get(ctx, doc.Path); !errs.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSQLiteSubscriptionSeesOtherConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskly.db")
	reader, err := OpenSQLite(path, Options{Throttle: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()
	writer, err := OpenSQLite(path, Options{})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := reader.Subscribe(ctx, Query{Collection: EventsPath("c1")})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSnapshot(t, ch, hasIDs())

	if err := writer.Set(ctx, EventPath("c1", "e1"), map[string]any{"title": "standup"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	waitSnapshot(t, ch, hasIDs("e1"))
}

func TestSQLiteConcurrentArrayUnion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskly.db")
	if dsn := sqliteDSN(path); !strings.Contains(dsn, "_txlock=immediate") {
		t.Fatalf("dsn = %s", dsn)
	}
	ctx := context.Background()
	stores := make([]*SQLite, 2)
	for i := range stores {
		s, err := OpenSQLite(path, Options{})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer s.Close()
		stores[i] = s
	}
	doc := CalendarPath("c1")
	if err := stores[0].Set(ctx, doc, map[string]any{"members": []any{"ann@example.com"}}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var wg sync.WaitGroup
	for i, s := range stores {
		for n := 0; n < 10; n++ {
			i, s, n := i, s, n
			wg.Add(1)
			go func() {
				defer wg.Done()
				email := fmt.Sprintf("user%d-%d@example.com", i, n)
				if err := s.Update(ctx, doc, Patch{"members": ArrayUnion(email)}); err != nil {
					t.Errorf("share %s: %v", email, err)
				}
			}()
		}
	}
	wg.Wait()

	got, err := stores[1].Get(ctx, doc)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	members, _ := got.Fields["members"].([]any)
	if len(members) != 21 {
		t.Fatalf("expected 21 members, got %d: %v", len(members), members)
	}
}
