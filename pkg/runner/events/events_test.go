package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"tableflip.dev/taskly/pkg/calendar"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/schedule"
	"tableflip.dev/taskly/pkg/store"
)

var ten = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func fixture(t *testing.T) (*calendar.Registry, *schedule.Store, string) {
	t.Helper()
	mem := store.NewMemory()
	reg := &calendar.Registry{Store: mem}
	id, err := reg.Create(context.Background(), "ann@example.com", "home")
	if err != nil {
		t.Fatal(err)
	}
	return reg, &schedule.Store{Store: mem}, id
}

func jsonPrinter(buf *bytes.Buffer) *printers.PrettyPrint {
	return &printers.PrettyPrint{Out: buf, Format: printers.FormatJSON}
}

func TestAddReportsConflicts(t *testing.T) {
	ctx := context.Background()
	_, sched, cal := fixture(t)

	var buf bytes.Buffer
	first := &Add{CalendarID: cal, Title: "review", Start: ten, For: 2 * time.Hour, Schedule: sched, Printer: jsonPrinter(&buf)}
	if err := first.Do(ctx); err != nil {
		t.Fatal(err)
	}
	var a added
	if err := json.Unmarshal(buf.Bytes(), &a); err != nil || len(a.Conflicts) != 0 {
		t.Fatalf("first = %+v %v", a, err)
	}

	buf.Reset()
	second := &Add{CalendarID: cal, Title: "standup", Start: ten.Add(time.Hour), For: time.Hour, Schedule: sched, Printer: jsonPrinter(&buf)}
	if err := second.Do(ctx); err != nil {
		t.Fatal(err)
	}
	var b added
	if err := json.Unmarshal(buf.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	if len(b.Conflicts) != 1 || b.Conflicts[0] != a.ID {
		t.Fatalf("conflicts = %v, want [%s]", b.Conflicts, a.ID)
	}
}

func TestEditKeepsDuration(t *testing.T) {
	ctx := context.Background()
	_, sched, cal := fixture(t)
	id, err := sched.Create(ctx, schedule.NewEvent{CalendarID: cal, Title: "review", Start: ten, End: ten.Add(2 * time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	later := ten.Add(24 * time.Hour)
	var buf bytes.Buffer
	if err := (&Edit{CalendarID: cal, EventID: id, Start: &later, Schedule: sched, Printer: jsonPrinter(&buf)}).Do(ctx); err != nil {
		t.Fatal(err)
	}
	ev, err := sched.Get(ctx, cal, id)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Start.Equal(later) || ev.Duration() != 2*time.Hour {
		t.Fatalf("event = %+v", ev)
	}

	if err := (&Edit{CalendarID: cal, EventID: id, Schedule: sched}).Do(ctx); err == nil {
		t.Fatal("expected an error for an empty edit")
	}
}

func TestExportThenImport(t *testing.T) {
	ctx := context.Background()
	reg, sched, cal := fixture(t)
	if _, err := sched.Create(ctx, schedule.NewEvent{CalendarID: cal, Title: "review", Description: "slides", Start: ten, End: ten.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	var ics bytes.Buffer
	if err := (&Export{CalendarID: cal, Registry: reg, Schedule: sched, Out: &ics}).Do(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ics.String(), "SUMMARY:review") {
		t.Fatalf("export:\n%s", ics.String())
	}

	other, err := reg.Create(ctx, "ann@example.com", "copy")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	imp := &Import{CalendarID: other, In: &ics, Registry: reg, Schedule: sched, Printer: jsonPrinter(&buf)}
	if err := imp.Do(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := sched.List(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "review" || !got[0].Start.Equal(ten) || got[0].Duration() != time.Hour {
		t.Fatalf("imported = %+v", got)
	}
}

func TestImportRequiresCalendar(t *testing.T) {
	reg, sched, _ := fixture(t)
	imp := &Import{CalendarID: "missing", In: strings.NewReader(""), Registry: reg, Schedule: sched}
	if err := imp.Do(context.Background()); err == nil {
		t.Fatal("expected error for unknown calendar")
	}
}
