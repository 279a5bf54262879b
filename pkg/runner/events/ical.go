package events

import (
	"context"
	"fmt"
	"io"

	"tableflip.dev/taskly/pkg/calendar"
	"tableflip.dev/taskly/pkg/ical"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/schedule"
)

// Export configures `taskly export`. The iCalendar text goes to Out.
type Export struct {
	CalendarID string
	Registry   *calendar.Registry
	Schedule   *schedule.Store
	Out        io.Writer
}

func (e *Export) Do(ctx context.Context) error {
	if e.Schedule == nil || e.Registry == nil {
		return errNoSchedule
	}
	cal, err := e.Registry.Get(ctx, e.CalendarID)
	if err != nil {
		return err
	}
	events, err := e.Schedule.List(ctx, e.CalendarID)
	if err != nil {
		return err
	}
	text, err := ical.Export(cal, events)
	if err != nil {
		return err
	}
	_, err = io.WriteString(e.Out, text)
	return err
}

// Import configures `taskly import`. Every VEVENT becomes a new event of
// CalendarID; the calendar must exist.
type Import struct {
	CalendarID string
	In         io.Reader
	Registry   *calendar.Registry
	Schedule   *schedule.Store
	Printer    *printers.PrettyPrint
}

type imported struct {
	CalendarID string   `json:"calendarId"`
	Created    []string `json:"created"`
}

func (i *Import) Do(ctx context.Context) error {
	if i.Schedule == nil || i.Registry == nil {
		return errNoSchedule
	}
	if _, err := i.Registry.Get(ctx, i.CalendarID); err != nil {
		return err
	}
	parsed, err := ical.Parse(i.In, i.CalendarID)
	if err != nil {
		return err
	}
	out := imported{CalendarID: i.CalendarID, Created: []string{}}
	for _, ev := range parsed {
		id, err := i.Schedule.Create(ctx, schedule.NewEvent{
			CalendarID:  i.CalendarID,
			Title:       ev.Title,
			Description: ev.Description,
			Start:       ev.Start,
			End:         ev.End,
			Kind:        ev.Kind,
		})
		if err != nil {
			return fmt.Errorf("import %q after %d events: %w", ev.Title, len(out.Created), err)
		}
		out.Created = append(out.Created, id)
	}
	pp := printer(i.Printer)
	return pp.Emit(out, func() {
		pp.Note("imported %d event(s) into %s", len(out.Created), i.CalendarID)
	})
}
