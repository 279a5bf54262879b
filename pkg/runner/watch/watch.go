// Package watch follows a live view and redraws it each time the client's bus
// reports its replica was replaced.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/projection"
	"tableflip.dev/taskly/pkg/session"
	"tableflip.dev/taskly/pkg/store"
)

// Watch configures `taskly watch`. Exactly one of CalendarID or Inbox is
// used.
type Watch struct {
	CalendarID string
	Inbox      bool
	Client     *session.Client
	Printer    *printers.PrettyPrint
	// Redraw clears the screen before each render. Set it for terminals.
	Redraw bool
	Out    io.Writer
	// Limit stops after that many renders. Zero follows until ctx is done.
	Limit int
}

func (w *Watch) Do(ctx context.Context) error {
	if w.Client == nil {
		return errors.New("watch: no client")
	}
	pp := w.Printer
	if pp == nil {
		pp = &printers.PrettyPrint{}
	}
	if w.Out != nil {
		pp.Out = w.Out
	}

	// Subscribe before opening so the first replica is not missed.
	updates := make(chan notify.ReplicaUpdatedEvent, 1)
	id := w.Client.Bus.Subscribe(notify.TypeReplicaUpdated, func(e notify.Event) {
		if u, ok := e.(notify.ReplicaUpdatedEvent); ok {
			store.Offer(updates, u)
		}
	})
	defer w.Client.Bus.Unsubscribe(id)

	if w.Inbox {
		v, err := w.Client.OpenInbox(ctx)
		if err != nil {
			return err
		}
		return follow(ctx, v, updates, w.Limit, func(ts []model.Task, u notify.ReplicaUpdatedEvent) error {
			w.clear(pp)
			return pp.Emit(ts, func() {
				pp.TitleWithCount("Inbox", len(ts), "task")
				pp.Tasks(ts...)
				w.footer(pp, u)
			})
		})
	}

	v, err := w.Client.SelectCalendar(ctx, w.CalendarID)
	if err != nil {
		return err
	}
	name := w.CalendarID
	if cal, err := w.Client.Registry.Get(ctx, w.CalendarID); err == nil {
		name = cal.Name
	}
	return follow(ctx, v, updates, w.Limit, func(events []model.Event, u notify.ReplicaUpdatedEvent) error {
		w.clear(pp)
		return pp.Emit(events, func() {
			pp.TitleWithCount(name, len(events), "event")
			pp.Events(events...)
			w.footer(pp, u)
		})
	})
}

func (w *Watch) clear(pp *printers.PrettyPrint) {
	if !w.Redraw || pp.Format != printers.FormatPretty {
		return
	}
	out := termenv.NewOutput(pp.Writer())
	out.ClearScreen()
}

func (w *Watch) footer(pp *printers.PrettyPrint, u notify.ReplicaUpdatedEvent) {
	if w.Redraw {
		pp.Note("version %d, updated %s, ctrl-c to stop", u.Version, u.Timestamp().Format("15:04:05"))
	}
}

// follow renders v each time an update for its key arrives, until ctx is
// done, the view stops or limit renders happened. Updates for other keys and
// versions already rendered are skipped.
func follow[T any](ctx context.Context, v *projection.View[T], updates <-chan notify.ReplicaUpdatedEvent, limit int, render func([]T, notify.ReplicaUpdatedEvent) error) error {
	var last projection.Version
	rendered := 0
	for {
		var u notify.ReplicaUpdatedEvent
		select {
		case <-ctx.Done():
			return nil
		case <-v.Done():
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch %s: %w", v.Key(), projection.ErrClosed)
		case u = <-updates:
		}
		if u.Key != v.Key() || projection.Version(u.Version) <= last {
			continue
		}
		items, version, ok := v.Current()
		if !ok || version == last {
			continue
		}
		last = version
		if err := render(items, u); err != nil {
			return err
		}
		rendered++
		if limit > 0 && rendered >= limit {
			return nil
		}
	}
}
