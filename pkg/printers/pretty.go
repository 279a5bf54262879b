// Package printers renders calendars, events and inbox tasks for the
// terminal, or as JSON/YAML for scripts.
package printers

import (
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"tableflip.dev/taskly/pkg/model"
)

type PrettyPrint struct {
	ShowID bool
	// Format is one of FormatPretty, FormatJSON or FormatYAML.
	Format string
	// Out defaults to color.Output.
	Out io.Writer
	// Location is the zone times are shown in. Defaults to time.Local.
	Location *time.Location
}

const (
	descriptionWidth = 64
	clock            = "15:04"
)

func (pp *PrettyPrint) out() io.Writer {
	if pp.Out == nil {
		return color.Output
	}
	return pp.Out
}

// Writer is where output goes.
func (pp *PrettyPrint) Writer() io.Writer {
	return pp.out()
}

func (pp *PrettyPrint) loc() *time.Location {
	if pp.Location == nil {
		return time.Local
	}
	return pp.Location
}

func (pp *PrettyPrint) NewLine() {
	_, _ = fmt.Fprintln(pp.out(), "")
}

func (pp *PrettyPrint) Title(title string) {
	t := color.New(color.Bold, color.Underline)
	_, _ = t.Fprintln(pp.out(), title)
}

func (pp *PrettyPrint) TitleWithCount(title string, count int, noun string) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)

	_, _ = t.Fprint(pp.out(), title)
	_, _ = c.Fprintf(pp.out(), " - %d", count)

	switch count {
	case 1:
		_, _ = c.Fprintf(pp.out(), " %s\n", noun)
	default:
		_, _ = c.Fprintf(pp.out(), " %ss\n", noun)
	}
}

// Note prints a faint status line.
func (pp *PrettyPrint) Note(format string, a ...any) {
	_, _ = color.New(color.Faint).Fprintf(pp.out(), format+"\n", a...)
}

// Warn prints a highlighted line for results that need attention.
func (pp *PrettyPrint) Warn(format string, a ...any) {
	_, _ = color.New(color.FgYellow).Fprintf(pp.out(), format+"\n", a...)
}

func (pp *PrettyPrint) Line(format string, a ...any) {
	_, _ = fmt.Fprintf(pp.out(), format+"\n", a...)
}

func (pp *PrettyPrint) none() {
	f := color.New(color.Faint, color.Italic)
	_, _ = f.Fprint(pp.out(), " none\n\n")
}

// Swatch is a colored dot that stays the same for a calendar id across runs.
func Swatch(calendarID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(calendarID))
	hue := float64(h.Sum32() % 360)
	c := colorful.Hsv(hue, 0.55, 0.9)
	profile := termenv.ColorProfile()
	return termenv.String("●").Foreground(profile.Color(c.Hex())).String()
}

// Calendars prints the calendars visible to email as a table.
func (pp *PrettyPrint) Calendars(email string, cals ...model.Calendar) {
	if len(cals) == 0 {
		pp.none()
		return
	}
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 48
	tbl.Wrap = true
	header := []interface{}{"", bold.Sprint("Name"), bold.Sprint("Owner"), bold.Sprint("Members")}
	if pp.ShowID {
		header = append(header, bold.Sprint("ID"))
	}
	tbl.AddRow(header...)
	for _, c := range cals {
		owner := c.Owner
		if model.NormalizeEmail(c.Owner) == model.NormalizeEmail(email) {
			owner = "you"
		}
		row := []interface{}{Swatch(c.ID), c.Name, owner, strings.Join(c.Members, ", ")}
		if pp.ShowID {
			row = append(row, faint.Sprint(c.ID))
		}
		tbl.AddRow(row...)
	}
	_, _ = fmt.Fprintln(pp.out(), tbl)
	pp.NewLine()
}

// Events prints events grouped by day, with their subtasks nested below.
func (pp *PrettyPrint) Events(events ...model.Event) {
	if len(events) == 0 {
		pp.none()
		return
	}
	w := pp.out()
	day := color.New(color.Bold)
	when := color.New(color.FgCyan)
	kind := color.New(color.FgHiYellow, color.Italic, color.Faint)
	id := color.New(color.Faint)
	plain := color.New()

	last := ""
	for _, e := range events {
		start, end := e.Start.In(pp.loc()), e.End.In(pp.loc())
		if d := start.Format("Monday, January 2 2006"); d != last {
			if last != "" {
				_, _ = fmt.Fprintln(w, "")
			}
			_, _ = day.Fprintln(w, d)
			last = d
		}

		span := start.Format(clock) + "-" + end.Format(clock)
		if !sameDate(start, end) {
			span = start.Format(clock) + "-" + end.Format("Jan 2 "+clock)
		}
		_, _ = fmt.Fprint(w, "  ", Swatch(e.CalendarID), " ")
		_, _ = when.Fprint(w, span)
		_, _ = plain.Fprintf(w, "  %s", e.Title)
		if e.Kind == model.KindTaskOrigin {
			_, _ = kind.Fprint(w, "  from inbox")
		}
		if pp.ShowID {
			_, _ = id.Fprintf(w, "  %s", e.ID)
		}
		_, _ = fmt.Fprintln(w, "")

		if e.Description != "" {
			_, _ = fmt.Fprintln(w, Wrap(e.Description, 6))
		}
		for _, s := range e.Subtasks {
			_, _ = plain.Fprintf(w, "      - %s", s.Title)
			if pp.ShowID {
				_, _ = id.Fprintf(w, "  %s", s.ID)
			}
			_, _ = fmt.Fprintln(w, "")
		}
	}
	pp.NewLine()
}

// Tasks prints inbox tasks oldest first.
func (pp *PrettyPrint) Tasks(tasks ...model.Task) {
	if len(tasks) == 0 {
		pp.none()
		return
	}
	w := pp.out()
	id := color.New(color.FgHiYellow, color.Italic, color.Faint)
	due := color.New(color.FgMagenta)
	plain := color.New()

	for _, t := range tasks {
		if pp.ShowID {
			_, _ = id.Fprint(w, t.ID)
			_, _ = fmt.Fprint(w, "  ")
		}
		_, _ = plain.Fprintf(w, "• %s", t.Title)
		if t.HasDue() {
			_, _ = due.Fprintf(w, "  due %s", t.Due.In(pp.loc()).Format("Jan 2"))
		}
		_, _ = fmt.Fprintln(w, "")
		if t.Description != "" {
			_, _ = fmt.Fprintln(w, Wrap(t.Description, 4))
		}
	}
	pp.NewLine()
}

// Wrap word-wraps text to the description width and indents it by n.
func Wrap(text string, n uint) string {
	return indent.String(wordwrap.String(strings.TrimSpace(text), descriptionWidth), n)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
