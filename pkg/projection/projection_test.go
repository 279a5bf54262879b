package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	"tableflip.dev/taskly/pkg/notify"
)

// feed is a hand driven subscription.
type feed struct {
	ch chan []string
}

func newFeed() *feed {
	return &feed{ch: make(chan []string, 1)}
}

func (f *feed) subscribe(ctx context.Context) (<-chan []string, error) {
	out := make(chan []string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case items := <-f.ch:
				select {
				case out <- items:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func wait(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestViewReplacesWholesale(t *testing.T) {
	p := &Projection{}
	f := newFeed()
	v, err := Open(context.Background(), p, "inbox", f.subscribe)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	if _, _, ok := v.Current(); ok {
		t.Fatal("no replica before the first delivery")
	}

	f.ch <- []string{"a", "b"}
	if _, err := v.WaitFor(wait(t), func(items []string) bool { return len(items) == 2 }); err != nil {
		t.Fatalf("wait: %v", err)
	}
	f.ch <- []string{"c"}
	items, err := v.WaitFor(wait(t), func(items []string) bool { return len(items) == 1 })
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if items[0] != "c" {
		t.Fatalf("replica must be the latest delivery, got %v", items)
	}
	_, version, ok := v.Current()
	if !ok || version != 2 {
		t.Fatalf("version = %d, ok = %v", version, ok)
	}
	if got, found := v.Find(func(s string) bool { return s == "c" }); !found || got != "c" {
		t.Fatalf("find = %q, %v", got, found)
	}
	if _, found := v.Find(func(s string) bool { return s == "a" }); found {
		t.Fatal("replaced items must be gone")
	}
}

func TestChangesCoalesce(t *testing.T) {
	p := &Projection{}
	f := newFeed()
	v, err := Open(context.Background(), p, "k", f.subscribe)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	for i := 0; i < 3; i++ {
		f.ch <- []string{"x"}
		if _, err := v.WaitFor(wait(t), func([]string) bool {
			_, version, _ := v.Current()
			return version == Version(i+1)
		}); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	// The pending signal carries version 3. A read may still catch version 2
	// if it races the last Offer.
	var last Version
	timeout := time.After(time.Second)
	for reads := 0; last != 3; reads++ {
		if reads == 2 {
			t.Fatalf("signals did not coalesce, last = %d", last)
		}
		select {
		case last = <-v.Changes():
		case <-timeout:
			t.Fatalf("expected a change signal, last = %d", last)
		}
	}
	select {
	case version := <-v.Changes():
		t.Fatalf("unexpected signal for %d", version)
	default:
	}
}

func TestOpenDuplicateKey(t *testing.T) {
	p := &Projection{}
	v, err := Open(context.Background(), p, "calendars", newFeed().subscribe)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := Open(context.Background(), p, "calendars", newFeed().subscribe); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
	v.Close()
	v.Close()
	again, err := Open(context.Background(), p, "calendars", newFeed().subscribe)
	if err != nil {
		t.Fatalf("closing must free the key: %v", err)
	}
	again.Close()
}

func TestOpenSubscribeError(t *testing.T) {
	p := &Projection{}
	boom := errors.New("boom")
	_, err := Open(context.Background(), p, "k", func(context.Context) (<-chan []string, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if keys := p.Keys(); len(keys) != 0 {
		t.Fatalf("failed open must not hold the key, got %v", keys)
	}
}

func TestCloseStopsWaiters(t *testing.T) {
	p := &Projection{}
	v, err := Open(context.Background(), p, "k", newFeed().subscribe)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	errc := make(chan error, 1)
	go func() {
		_, err := v.WaitFor(context.Background(), func([]string) bool { return true })
		errc <- err
	}()
	v.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("waiter was not released")
	}
}

func TestCloseAllAndKeys(t *testing.T) {
	p := &Projection{}
	for _, key := range []string{"b", "a", "c"} {
		if _, err := Open(context.Background(), p, key, newFeed().subscribe); err != nil {
			t.Fatalf("open %s: %v", key, err)
		}
	}
	keys := p.Keys()
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Fatalf("keys = %v", keys)
	}
	p.CloseAll()
	if keys := p.Keys(); len(keys) != 0 {
		t.Fatalf("keys after CloseAll = %v", keys)
	}
}

func TestReplicaUpdatedPublished(t *testing.T) {
	bus := notify.NewBus(nil)
	seen := make(chan notify.ReplicaUpdatedEvent, 4)
	bus.Subscribe(notify.TypeReplicaUpdated, func(e notify.Event) {
		seen <- e.(notify.ReplicaUpdatedEvent)
	})

	p := &Projection{Bus: bus}
	f := newFeed()
	v, err := Open(context.Background(), p, "calendar:c1", f.subscribe)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()
	f.ch <- []string{"e1", "e2"}

	select {
	case e := <-seen:
		if e.Key != "calendar:c1" || e.Version != 1 || e.Size != 2 {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no replica.updated event")
	}
}

func TestCancelledViewFreesKey(t *testing.T) {
	p := &Projection{}
	ctx, cancel := context.WithCancel(context.Background())
	v, err := Open(ctx, p, "k", newFeed().subscribe)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cancel()
	select {
	case <-v.Done():
	case <-wait(t).Done():
		t.Fatal("view did not stop after cancel")
	}
	if keys := p.Keys(); len(keys) != 0 {
		t.Fatalf("keys after cancel = %v", keys)
	}

	again, err := Open(context.Background(), p, "k", newFeed().subscribe)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	// Closing the stale view must not free the new one's key.
	v.Close()
	if keys := p.Keys(); len(keys) != 1 || keys[0] != "k" {
		t.Fatalf("keys = %v", keys)
	}
	again.Close()
}
