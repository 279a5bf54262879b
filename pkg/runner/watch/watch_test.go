package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"tableflip.dev/taskly/pkg/inbox"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/session"
	"tableflip.dev/taskly/pkg/store"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitRendered blocks until something was written.
func waitRendered(t *testing.T, ctx context.Context, buf *lockedBuffer, done <-chan error) {
	t.Helper()
	for buf.String() == "" {
		select {
		case err := <-done:
			t.Fatalf("watch ended early: %v", err)
		case <-ctx.Done():
			t.Fatal("no initial render")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWatchInboxRendersEachChange(t *testing.T) {
	mem := store.NewMemory()
	client, err := session.New(model.User{ID: "u1", Email: "ann@example.com"}, mem, session.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	buf := &lockedBuffer{}
	w := Watch{
		Inbox:   true,
		Client:  client,
		Printer: &printers.PrettyPrint{Format: printers.FormatJSON},
		Out:     buf,
		Limit:   2,
	}
	done := make(chan error, 1)
	go func() { done <- w.Do(ctx) }()

	waitRendered(t, ctx, buf, done)
	if _, err := client.Inbox.Create(ctx, "u1", inbox.NewTask{Title: "Buy milk"}); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}

	dec := json.NewDecoder(strings.NewReader(buf.String()))
	var renders [][]model.Task
	for dec.More() {
		var ts []model.Task
		if err := dec.Decode(&ts); err != nil {
			t.Fatalf("decode: %v", err)
		}
		renders = append(renders, ts)
	}
	if len(renders) != 2 || len(renders[0]) != 0 || len(renders[1]) != 1 || renders[1][0].Title != "Buy milk" {
		t.Fatalf("renders = %+v", renders)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	client, err := session.New(model.User{ID: "u1", Email: "ann@example.com"}, store.NewMemory(), session.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	buf := &lockedBuffer{}
	w := Watch{CalendarID: "c1", Client: client, Printer: &printers.PrettyPrint{Format: printers.FormatJSON}, Out: buf}
	done := make(chan error, 1)
	go func() { done <- w.Do(ctx) }()
	deadline, stop := context.WithTimeout(ctx, 5*time.Second)
	defer stop()
	waitRendered(t, deadline, buf, done)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchFooterShowsReplicaVersion(t *testing.T) {
	client, err := session.New(model.User{ID: "u1", Email: "ann@example.com"}, store.NewMemory(), session.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	buf := &lockedBuffer{}
	w := Watch{Inbox: true, Client: client, Printer: &printers.PrettyPrint{}, Out: buf, Redraw: true, Limit: 1}
	if err := w.Do(ctx); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "version 1, updated") {
		t.Fatalf("footer missing replica version:\n%s", got)
	}
}

func TestFollowSkipsOtherKeys(t *testing.T) {
	client, err := session.New(model.User{ID: "u1", Email: "ann@example.com"}, store.NewMemory(), session.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := client.OpenInbox(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.WaitFor(ctx, func([]model.Task) bool { return true }); err != nil {
		t.Fatal(err)
	}

	updates := make(chan notify.ReplicaUpdatedEvent, 2)
	updates <- notify.NewReplicaUpdatedEvent("calendars:ann@example.com", 7, 3)
	updates <- notify.NewReplicaUpdatedEvent(v.Key(), 1, 0)

	var seen []notify.ReplicaUpdatedEvent
	err = follow(ctx, v, updates, 1, func(_ []model.Task, u notify.ReplicaUpdatedEvent) error {
		seen = append(seen, u)
		return nil
	})
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if len(seen) != 1 || seen[0].Key != v.Key() || seen[0].Version != 1 {
		t.Fatalf("rendered for %+v", seen)
	}
}
