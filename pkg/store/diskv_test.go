package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tableflip.dev/taskly/pkg/errs"
)

func TestDiskvCRUD(t *testing.T) {
	ctx := context.Background()
	p, err := Load(Options{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer p.Close()

	if err := p.Set(ctx, CalendarPath("c1"), map[string]any{"name": "Team", "members": []string{"ann@example.com"}}); err != nil {
		t.Fatalf("set calendar: %v", err)
	}
	if err := p.Set(ctx, EventPath("c1", "e1"), map[string]any{"title": "standup"}); err != nil {
		t.Fatalf("set event: %v", err)
	}

	// The event lives in a subcollection directory next to the calendar file.
	if _, err := os.Stat(filepath.Join(p.BasePath(), "calendars", "c1.json")); err != nil {
		t.Fatalf("calendar file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p.BasePath(), "calendars", "c1", "events", "e1.json")); err != nil {
		t.Fatalf("event file: %v", err)
	}

	snap, err := p.ListAll(ctx, CalendarsPath())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snap.Docs) != 1 || snap.Docs[0].ID != "c1" {
		t.Fatalf("expected only the calendar, got %v", snap.IDs())
	}

	if err := p.Update(ctx, CalendarPath("c1"), Patch{"members": ArrayUnion("bob@example.com")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, err := p.Get(ctx, CalendarPath("c1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if members := doc.Fields["members"].([]any); len(members) != 2 {
		t.Fatalf("members = %v", members)
	}

	if err := p.Delete(ctx, CalendarPath("c1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := p.Delete(ctx, CalendarPath("c1")); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := p.Get(ctx, CalendarPath("c1")); !errs.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := p.Update(ctx, CalendarPath("c1"), Patch{"name": "x"}); !errs.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	// Deleting the document leaves its subcollection alone.
	if _, err := p.Get(ctx, EventPath("c1", "e1")); err != nil {
		t.Fatalf("event should survive: %v", err)
	}
}

func TestDiskvWatchSeesOtherProcessWrites(t *testing.T) {
	base := t.TempDir()
	reader, err := Load(Options{Path: base, Throttle: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("load reader: %v", err)
	}
	defer reader.Close()
	writer, err := Load(Options{Path: base})
	if err != nil {
		t.Fatalf("load writer: %v", err)
	}
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := reader.Subscribe(ctx, Query{Collection: TodosPath("u1")})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSnapshot(t, ch, hasIDs())

	// Allow the watcher to register directories before writing.
	time.Sleep(50 * time.Millisecond)

	if err := writer.Set(ctx, TodoPath("u1", "t1"), map[string]any{"title": "hello world"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	waitSnapshot(t, ch, hasIDs("t1"))
}
