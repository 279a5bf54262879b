package calendars

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"tableflip.dev/taskly/pkg/calendar"
	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/schedule"
	"tableflip.dev/taskly/pkg/store"
)

func TestDeleteReportsRemaining(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	reg := &calendar.Registry{Store: mem}
	sched := &schedule.Store{Store: mem}

	id, err := reg.Create(ctx, "ann@example.com", "home")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	eid, err := sched.Create(ctx, schedule.NewEvent{CalendarID: id, Title: "review", Start: start, End: start.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sched.AddSubtask(ctx, id, eid, "print slides", ""); err != nil {
		t.Fatal(err)
	}
	// The subtask goes, the event delete fails.
	mem.FailPath(store.MethodDelete, store.EventPath(id, eid), nil)

	var buf bytes.Buffer
	d := &Delete{CalendarID: id, Registry: reg, Printer: &printers.PrettyPrint{Out: &buf, Format: printers.FormatJSON}}
	err = d.Do(ctx)
	if !errs.Is(err, errs.ErrPartialCascade) {
		t.Fatalf("expected partial cascade, got %v", err)
	}
	var out deleted
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if out.Deleted || len(out.Remaining) != 2 || out.Remaining[0] != store.EventPath(id, eid) {
		t.Fatalf("output = %+v", out)
	}

	buf.Reset()
	if err := d.Do(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}
	out = deleted{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil || !out.Deleted {
		t.Fatalf("resume output = %+v %v", out, err)
	}
}

func TestDeletePrintsCascadeSteps(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	bus := notify.NewBus(nil)
	reg := &calendar.Registry{Store: mem, Bus: bus}
	sched := &schedule.Store{Store: mem, Bus: bus}

	id, err := reg.Create(ctx, "ann@example.com", "home")
	if err != nil {
		t.Fatal(err)
	}
	other, err := reg.Create(ctx, "ann@example.com", "work")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	eid, err := sched.Create(ctx, schedule.NewEvent{CalendarID: id, Title: "review", Start: start, End: start.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sched.AddSubtask(ctx, id, eid, "print slides", ""); err != nil {
		t.Fatal(err)
	}

	// A delete of another calendar is not reported.
	if err := reg.Delete(ctx, other); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	d := &Delete{CalendarID: id, Registry: reg, Printer: &printers.PrettyPrint{Out: &buf, Format: printers.FormatJSON}}
	if err := d.Do(ctx); err != nil {
		t.Fatal(err)
	}
	var out deleted
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := []cascadeReport{
		{Step: string(calendar.StepSubtasks), Deleted: 1, Remaining: 2},
		{Step: string(calendar.StepEvents), Deleted: 1, Remaining: 1},
		{Step: string(calendar.StepCalendar), Deleted: 1, Remaining: 0},
	}
	if len(out.Steps) != len(want) {
		t.Fatalf("steps = %+v", out.Steps)
	}
	for i := range want {
		if out.Steps[i] != want[i] {
			t.Fatalf("step %d = %+v, want %+v", i, out.Steps[i], want[i])
		}
	}

	id2, err := reg.Create(ctx, "ann@example.com", "spare")
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	d = &Delete{CalendarID: id2, Registry: reg, Printer: &printers.PrettyPrint{Out: &buf}}
	if err := d.Do(ctx); err != nil {
		t.Fatal(err)
	}
	// Pretty output lists every step and the runner stops listening.
	got := buf.String()
	if !strings.Contains(got, "subtasks") || strings.Count(got, "deleted,") != 3 {
		t.Fatalf("pretty output:\n%s", got)
	}
	if n := bus.SubscriptionCount(); n != 0 {
		t.Fatalf("%d subscriptions left", n)
	}
}

func TestOwned(t *testing.T) {
	cals := []model.Calendar{
		{ID: "c1", Owner: "ann@example.com"},
		{ID: "c2", Owner: "bob@example.com"},
	}
	got := Owned("Ann@Example.com", cals)
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("got %+v", got)
	}
}
