// Package calendars contains runners for the calendar commands.
package calendars

import (
	"context"
	"errors"

	"tableflip.dev/taskly/pkg/calendar"
	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/printers"
)

var errNoRegistry = errors.New("calendars: no registry")

func printer(pp *printers.PrettyPrint) *printers.PrettyPrint {
	if pp == nil {
		return &printers.PrettyPrint{}
	}
	return pp
}

// Create configures `taskly calendar create`.
type Create struct {
	Owner    string
	Name     string
	Registry *calendar.Registry
	Printer  *printers.PrettyPrint
}

func (c *Create) Do(ctx context.Context) error {
	if c.Registry == nil {
		return errNoRegistry
	}
	id, err := c.Registry.Create(ctx, c.Owner, c.Name)
	if err != nil {
		return err
	}
	cal, err := c.Registry.Get(ctx, id)
	if err != nil {
		return err
	}
	pp := printer(c.Printer)
	return pp.Emit(cal, func() {
		pp.Title("Created")
		pp.Calendars(c.Owner, cal)
	})
}

// List configures `taskly calendar list`.
type List struct {
	Email string
	// Owned hides calendars shared with Email by someone else.
	Owned    bool
	Registry *calendar.Registry
	Printer  *printers.PrettyPrint
}

func (l *List) Do(ctx context.Context) error {
	if l.Registry == nil {
		return errNoRegistry
	}
	cals, err := l.Registry.Visible(ctx, l.Email)
	if err != nil {
		return err
	}
	if l.Owned {
		cals = Owned(l.Email, cals)
	}
	pp := printer(l.Printer)
	return pp.Emit(cals, func() {
		pp.TitleWithCount("Calendars", len(cals), "calendar")
		pp.Calendars(l.Email, cals...)
	})
}

// Share configures `taskly calendar share`. Remove unshares instead.
type Share struct {
	CalendarID string
	Email      string
	Remove     bool
	Registry   *calendar.Registry
	Printer    *printers.PrettyPrint
}

func (s *Share) Do(ctx context.Context) error {
	if s.Registry == nil {
		return errNoRegistry
	}
	var err error
	if s.Remove {
		err = s.Registry.Unshare(ctx, s.CalendarID, s.Email)
	} else {
		err = s.Registry.Share(ctx, s.CalendarID, s.Email)
	}
	if err != nil {
		return err
	}
	cal, err := s.Registry.Get(ctx, s.CalendarID)
	if err != nil {
		return err
	}
	pp := printer(s.Printer)
	return pp.Emit(cal, func() {
		pp.Calendars("", cal)
	})
}

// Rename configures `taskly calendar rename`.
type Rename struct {
	CalendarID string
	Name       string
	Registry   *calendar.Registry
	Printer    *printers.PrettyPrint
}

func (r *Rename) Do(ctx context.Context) error {
	if r.Registry == nil {
		return errNoRegistry
	}
	if err := r.Registry.Rename(ctx, r.CalendarID, r.Name); err != nil {
		return err
	}
	cal, err := r.Registry.Get(ctx, r.CalendarID)
	if err != nil {
		return err
	}
	pp := printer(r.Printer)
	return pp.Emit(cal, func() {
		pp.Calendars("", cal)
	})
}

// Delete configures `taskly calendar delete`.
type Delete struct {
	CalendarID string
	Registry   *calendar.Registry
	Printer    *printers.PrettyPrint
}

type deleted struct {
	ID        string          `json:"id"`
	Deleted   bool            `json:"deleted"`
	Steps     []cascadeReport `json:"steps,omitempty"`
	Remaining []string        `json:"remaining,omitempty"`
}

type cascadeReport struct {
	Step      string `json:"step"`
	Deleted   int    `json:"deleted"`
	Remaining int    `json:"remaining"`
}

// watchCascade collects the progress the registry reports for calendarID
// until the returned stop is called.
func watchCascade(bus *notify.Bus, calendarID string) (steps func() []cascadeReport, stop func()) {
	var out []cascadeReport
	id := bus.Subscribe(notify.TypeCascadeProgress, func(e notify.Event) {
		p, ok := e.(notify.CascadeProgressEvent)
		if !ok || p.CalendarID != calendarID {
			return
		}
		out = append(out, cascadeReport{Step: p.Step, Deleted: p.Deleted, Remaining: p.Remaining})
	})
	return func() []cascadeReport { return out }, func() { bus.Unsubscribe(id) }
}

func (d *Delete) Do(ctx context.Context) error {
	if d.Registry == nil {
		return errNoRegistry
	}
	steps := func() []cascadeReport { return nil }
	if d.Registry.Bus != nil {
		var stop func()
		steps, stop = watchCascade(d.Registry.Bus, d.CalendarID)
		defer stop()
	}
	err := d.Registry.Delete(ctx, d.CalendarID)
	var partial *errs.PartialCascadeError
	if err != nil && !errs.As(err, &partial) {
		return err
	}
	out := deleted{ID: d.CalendarID, Deleted: err == nil, Steps: steps()}
	if partial != nil {
		out.Remaining = partial.Remaining
	}
	pp := printer(d.Printer)
	if perr := pp.Emit(out, func() {
		for _, s := range out.Steps {
			pp.Line("  %-9s %d deleted, %d remaining", s.Step, s.Deleted, s.Remaining)
		}
		if partial == nil {
			pp.Note("deleted %s", d.CalendarID)
			return
		}
		pp.Warn("calendar %s was only partly deleted, %d records remain:", d.CalendarID, len(partial.Remaining))
		for _, p := range partial.Remaining {
			pp.Line("  %s", p)
		}
		pp.Warn("run the delete again to finish it")
	}); perr != nil {
		return perr
	}
	return err
}

// Owned filters cals down to those owned by email.
func Owned(email string, cals []model.Calendar) []model.Calendar {
	email = model.NormalizeEmail(email)
	out := make([]model.Calendar, 0, len(cals))
	for _, c := range cals {
		if c.Owner == email {
			out = append(out, c)
		}
	}
	return out
}
