package events

import (
	"context"

	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/schedule"
)

// AddSubtask configures `taskly subtask add`.
type AddSubtask struct {
	CalendarID  string
	EventID     string
	Title       string
	Description string
	Schedule    *schedule.Store
	Printer     *printers.PrettyPrint
}

func (a *AddSubtask) Do(ctx context.Context) error {
	if a.Schedule == nil {
		return errNoSchedule
	}
	if _, err := a.Schedule.AddSubtask(ctx, a.CalendarID, a.EventID, a.Title, a.Description); err != nil {
		return err
	}
	ev, err := a.Schedule.Get(ctx, a.CalendarID, a.EventID)
	if err != nil {
		return err
	}
	pp := printer(a.Printer)
	return pp.Emit(ev, func() {
		pp.Events(ev)
	})
}

// RemoveSubtask configures `taskly subtask rm`.
type RemoveSubtask struct {
	CalendarID string
	EventID    string
	SubtaskID  string
	Schedule   *schedule.Store
	Printer    *printers.PrettyPrint
}

func (r *RemoveSubtask) Do(ctx context.Context) error {
	if r.Schedule == nil {
		return errNoSchedule
	}
	if err := r.Schedule.DeleteSubtask(ctx, r.CalendarID, r.EventID, r.SubtaskID); err != nil {
		return err
	}
	pp := printer(r.Printer)
	return pp.Emit(map[string]any{"id": r.SubtaskID, "eventId": r.EventID, "deleted": true}, func() {
		pp.Note("deleted subtask %s", r.SubtaskID)
	})
}
