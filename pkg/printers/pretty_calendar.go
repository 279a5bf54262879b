package printers

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/taskly/pkg/model"
)

const width = len("11 12 13 14 15 16 17") // an example week

// Month prints a small month grid of then; days with events are bold.
func (pp *PrettyPrint) Month(then time.Time, events ...model.Event) {
	then = then.In(pp.loc())
	pp.PrintMonthCount(then, CountByDay(then, events, pp.loc()))
}

// CountByDay counts, for each day of then's month, the events touching it.
func CountByDay(then time.Time, events []model.Event, loc *time.Location) []int {
	first := time.Date(then.Year(), then.Month(), 1, 0, 0, 0, 0, loc)
	count := make([]int, DaysIn(then))
	for i := range count {
		day := first.AddDate(0, 0, i)
		for _, e := range events {
			if touches(e, day) {
				count[i]++
			}
		}
	}
	return count
}

func touches(e model.Event, day time.Time) bool {
	next := day.AddDate(0, 0, 1)
	if !e.Start.Before(day) && e.Start.Before(next) {
		return true
	}
	return e.Start.Before(next) && e.End.After(day)
}

func (pp *PrettyPrint) PrintMonthCount(then time.Time, count []int) {
	w := pp.out()
	d := StartDay(then)

	tf := color.New(color.FgWhite, color.Italic)

	m := then.Month().String()
	mid := (width - len(m)) / 2
	_, _ = tf.Fprintf(w, "%s%s%s\n", strings.Repeat(" ", mid), m, strings.Repeat(" ", width-mid-len(m)))

	days := DaysIn(then)

	// Pad out the start of the month.
	for i := time.Sunday; i < d; i++ {
		_, _ = fmt.Fprint(w, "   ")
	}

	l1 := color.New(color.Faint, color.FgWhite)
	l2 := color.New(color.Bold, color.FgHiWhite)

	for i := 0; i < days; i++ {
		if i < len(count) && count[i] > 0 {
			_, _ = l2.Fprintf(w, "%2d ", i+1)
		} else {
			_, _ = l1.Fprintf(w, "%2d ", i+1)
		}

		d++
		if d > time.Saturday {
			d = time.Sunday
			_, _ = fmt.Fprint(w, "\n")
		}
	}
	_, _ = fmt.Fprint(w, "\n\n")
}

func NextMonth(then time.Time) time.Time {
	return time.Date(then.Year(), then.Month()+1, 1, 1, 0, 0, 0, then.Location())
}

func DaysIn(then time.Time) int {
	return time.Date(then.Year(), then.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func StartDay(then time.Time) time.Weekday {
	return time.Date(then.Year(), then.Month(), 1, 1, 0, 0, 0, time.UTC).Weekday()
}
