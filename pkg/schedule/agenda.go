package schedule

import (
	"time"

	"github.com/rdleal/intervalst/interval"

	"tableflip.dev/taskly/pkg/model"
)

// Agenda indexes events by their time span.
type Agenda struct {
	tree *interval.SearchTree[int, time.Time]
	// slots groups events sharing an identical span; the tree keeps one
	// value per span.
	slots [][]model.Event
	spans map[[2]int64]int
	// loose holds events the tree refused; they are scanned linearly.
	loose []model.Event
	size  int
}

// NewAgenda builds an index over events.
func NewAgenda(events []model.Event) *Agenda {
	a := &Agenda{
		tree:  interval.NewSearchTree[int](func(x, y time.Time) int { return x.Compare(y) }),
		spans: make(map[[2]int64]int),
	}
	for _, e := range events {
		a.Add(e)
	}
	return a
}

// Add indexes e. Events with an inverted span are ignored.
func (a *Agenda) Add(e model.Event) {
	if e.End.Before(e.Start) {
		return
	}
	key := [2]int64{e.Start.UnixNano(), e.End.UnixNano()}
	if slot, ok := a.spans[key]; ok {
		a.slots[slot] = append(a.slots[slot], e)
		a.size++
		return
	}
	slot := len(a.slots)
	if err := a.tree.Insert(e.Start, e.End, slot); err != nil {
		a.loose = append(a.loose, e)
		a.size++
		return
	}
	a.slots = append(a.slots, []model.Event{e})
	a.spans[key] = slot
	a.size++
}

// Len is the number of indexed events.
func (a *Agenda) Len() int {
	return a.size
}

// Overlapping returns the events whose span intersects [from, to), ordered
// by start. A zero length event counts when it sits inside the window.
func (a *Agenda) Overlapping(from, to time.Time) []model.Event {
	if !from.Before(to) {
		return nil
	}
	var out []model.Event
	for _, e := range a.candidates(from, to) {
		if overlaps(e.Start, e.End, from, to) {
			out = append(out, e)
		}
	}
	model.SortEvents(out)
	return out
}

// Conflicts returns the other events that overlap e.
func (a *Agenda) Conflicts(e model.Event) []model.Event {
	var out []model.Event
	for _, other := range a.candidates(e.Start, e.End) {
		if other.ID == e.ID {
			continue
		}
		if e.Start.Equal(e.End) {
			if overlaps(e.Start, e.End, other.Start, other.End) {
				out = append(out, other)
			}
			continue
		}
		if overlaps(other.Start, other.End, e.Start, e.End) {
			out = append(out, other)
		}
	}
	model.SortEvents(out)
	return out
}

// Day returns the events touching the calendar day of day in its location.
func (a *Agenda) Day(day time.Time) []model.Event {
	from, to := DayBounds(day)
	return a.Overlapping(from, to)
}

func (a *Agenda) candidates(from, to time.Time) []model.Event {
	if !to.After(from) {
		to = from.Add(time.Nanosecond)
	}
	out := append([]model.Event(nil), a.loose...)
	slots, ok := a.tree.AllIntersections(from, to)
	if !ok {
		return out
	}
	for _, slot := range slots {
		out = append(out, a.slots[slot]...)
	}
	return out
}

// overlaps reports whether [start, end] intersects the half open window
// [from, to).
func overlaps(start, end, from, to time.Time) bool {
	if start.Equal(end) {
		return !start.Before(from) && start.Before(to)
	}
	return start.Before(to) && end.After(from)
}

// DayBounds returns midnight of day and of the following day, in day's
// location.
func DayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return from, from.AddDate(0, 0, 1)
}
