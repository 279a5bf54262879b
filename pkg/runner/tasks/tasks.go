// Package tasks contains runners for the inbox commands.
package tasks

import (
	"context"
	"errors"
	"time"

	"tableflip.dev/taskly/pkg/inbox"
	"tableflip.dev/taskly/pkg/printers"
)

var errNoInbox = errors.New("tasks: no inbox")

func printer(pp *printers.PrettyPrint) *printers.PrettyPrint {
	if pp == nil {
		return &printers.PrettyPrint{}
	}
	return pp
}

// Add configures `taskly task add`.
type Add struct {
	UserID      string
	Title       string
	Description string
	Due         time.Time
	Inbox       *inbox.Inbox
	Printer     *printers.PrettyPrint
}

func (a *Add) Do(ctx context.Context) error {
	if a.Inbox == nil {
		return errNoInbox
	}
	id, err := a.Inbox.Create(ctx, a.UserID, inbox.NewTask{
		Title:       a.Title,
		Description: a.Description,
		Due:         a.Due,
	})
	if err != nil {
		return err
	}
	t, err := a.Inbox.Get(ctx, a.UserID, id)
	if err != nil {
		return err
	}
	pp := printer(a.Printer)
	return pp.Emit(t, func() {
		pp.Title("Inbox")
		pp.Tasks(t)
	})
}

// Remove configures `taskly task rm`.
type Remove struct {
	UserID  string
	TaskID  string
	Inbox   *inbox.Inbox
	Printer *printers.PrettyPrint
}

func (r *Remove) Do(ctx context.Context) error {
	if r.Inbox == nil {
		return errNoInbox
	}
	if err := r.Inbox.Delete(ctx, r.UserID, r.TaskID); err != nil {
		return err
	}
	pp := printer(r.Printer)
	return pp.Emit(map[string]any{"id": r.TaskID, "deleted": true}, func() {
		pp.Note("deleted %s", r.TaskID)
	})
}

// List configures `taskly task ls`.
type List struct {
	UserID  string
	Inbox   *inbox.Inbox
	Printer *printers.PrettyPrint
}

func (l *List) Do(ctx context.Context) error {
	if l.Inbox == nil {
		return errNoInbox
	}
	ts, err := l.Inbox.List(ctx, l.UserID)
	if err != nil {
		return err
	}
	pp := printer(l.Printer)
	return pp.Emit(ts, func() {
		pp.TitleWithCount("Inbox", len(ts), "task")
		pp.Tasks(ts...)
	})
}
