// Package events contains runners for the event and subtask commands.
package events

import (
	"context"
	"errors"
	"time"

	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/schedule"
)

var errNoSchedule = errors.New("events: no event store")

func printer(pp *printers.PrettyPrint) *printers.PrettyPrint {
	if pp == nil {
		return &printers.PrettyPrint{}
	}
	return pp
}

// Add configures `taskly event add`.
type Add struct {
	CalendarID  string
	Title       string
	Description string
	Start       time.Time
	For         time.Duration
	Schedule    *schedule.Store
	Printer     *printers.PrettyPrint
}

type added struct {
	model.Event
	Conflicts []string `json:"conflicts,omitempty"`
}

func (a *Add) Do(ctx context.Context) error {
	if a.Schedule == nil {
		return errNoSchedule
	}
	id, err := a.Schedule.Create(ctx, schedule.NewEvent{
		CalendarID:  a.CalendarID,
		Title:       a.Title,
		Description: a.Description,
		Start:       a.Start,
		End:         a.Start.Add(a.For),
	})
	if err != nil {
		return err
	}
	ev, err := a.Schedule.Get(ctx, a.CalendarID, id)
	if err != nil {
		return err
	}
	conflicts, err := a.conflicts(ctx, ev)
	if err != nil {
		return err
	}
	out := added{Event: ev}
	for _, c := range conflicts {
		out.Conflicts = append(out.Conflicts, c.ID)
	}

	pp := printer(a.Printer)
	return pp.Emit(out, func() {
		pp.Events(ev)
		if len(conflicts) > 0 {
			pp.Warn("overlaps %d other event(s):", len(conflicts))
			pp.Events(conflicts...)
		}
	})
}

func (a *Add) conflicts(ctx context.Context, ev model.Event) ([]model.Event, error) {
	all, err := a.Schedule.List(ctx, a.CalendarID)
	if err != nil {
		return nil, err
	}
	return schedule.NewAgenda(all).Conflicts(ev), nil
}

// Move configures `taskly event move`.
type Move struct {
	CalendarID string
	EventID    string
	Start      time.Time
	Schedule   *schedule.Store
	Printer    *printers.PrettyPrint
}

func (m *Move) Do(ctx context.Context) error {
	if m.Schedule == nil {
		return errNoSchedule
	}
	ev, err := m.Schedule.Move(ctx, m.CalendarID, m.EventID, m.Start)
	if err != nil {
		return err
	}
	pp := printer(m.Printer)
	return pp.Emit(ev, func() {
		pp.Events(ev)
	})
}

// Edit configures `taskly event edit`. Nil fields are left alone; changing
// only Start keeps the duration.
type Edit struct {
	CalendarID  string
	EventID     string
	Title       *string
	Description *string
	Start       *time.Time
	For         *time.Duration
	Schedule    *schedule.Store
	Printer     *printers.PrettyPrint
}

func (e *Edit) Do(ctx context.Context) error {
	if e.Schedule == nil {
		return errNoSchedule
	}
	patch := schedule.Patch{Title: e.Title, Description: e.Description}
	if e.Start != nil || e.For != nil {
		current, err := e.Schedule.Get(ctx, e.CalendarID, e.EventID)
		if err != nil {
			return err
		}
		start, span := current.Start, current.Duration()
		if e.Start != nil {
			start = *e.Start
		}
		if e.For != nil {
			span = *e.For
		}
		end := start.Add(span)
		patch.Start, patch.End = &start, &end
	}
	if patch.Empty() {
		return errors.New("nothing to change, pass --title, --description, --at or --for")
	}
	ev, err := e.Schedule.Update(ctx, e.CalendarID, e.EventID, patch)
	if err != nil {
		return err
	}
	pp := printer(e.Printer)
	return pp.Emit(ev, func() {
		pp.Events(ev)
	})
}

// Remove configures `taskly event rm`.
type Remove struct {
	CalendarID string
	EventID    string
	Schedule   *schedule.Store
	Printer    *printers.PrettyPrint
}

func (r *Remove) Do(ctx context.Context) error {
	if r.Schedule == nil {
		return errNoSchedule
	}
	if err := r.Schedule.Delete(ctx, r.CalendarID, r.EventID); err != nil {
		return err
	}
	pp := printer(r.Printer)
	return pp.Emit(map[string]any{"id": r.EventID, "deleted": true}, func() {
		pp.Note("deleted %s", r.EventID)
	})
}

// List configures `taskly event ls`. With Month set, a month grid of the
// month of Month is printed above the listing and only that month is listed.
type List struct {
	CalendarID string
	Month      time.Time
	Schedule   *schedule.Store
	Printer    *printers.PrettyPrint
}

func (l *List) Do(ctx context.Context) error {
	if l.Schedule == nil {
		return errNoSchedule
	}
	events, err := l.Schedule.List(ctx, l.CalendarID)
	if err != nil {
		return err
	}
	if !l.Month.IsZero() {
		first := time.Date(l.Month.Year(), l.Month.Month(), 1, 0, 0, 0, 0, l.Month.Location())
		events = schedule.NewAgenda(events).Overlapping(first, printers.NextMonth(first).Add(-time.Hour))
	}
	pp := printer(l.Printer)
	return pp.Emit(events, func() {
		if !l.Month.IsZero() {
			pp.Month(l.Month, events...)
		}
		pp.TitleWithCount("Events", len(events), "event")
		pp.Events(events...)
	})
}

// Day configures `taskly event day`.
type Day struct {
	CalendarID string
	Day        time.Time
	Schedule   *schedule.Store
	Printer    *printers.PrettyPrint
}

func (d *Day) Do(ctx context.Context) error {
	if d.Schedule == nil {
		return errNoSchedule
	}
	events, err := d.Schedule.Day(ctx, d.CalendarID, d.Day)
	if err != nil {
		return err
	}
	pp := printer(d.Printer)
	return pp.Emit(events, func() {
		pp.TitleWithCount(d.Day.Format("Monday, January 2 2006"), len(events), "event")
		pp.Events(events...)
	})
}
