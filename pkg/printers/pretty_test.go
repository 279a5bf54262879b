package printers

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/taskly/pkg/model"
)

func init() {
	color.NoColor = true
}

var ten = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestEventsGroupsByDay(t *testing.T) {
	var buf bytes.Buffer
	pp := &PrettyPrint{Out: &buf, Location: time.UTC}
	pp.Events(
		model.Event{ID: "e1", CalendarID: "c1", Title: "review", Start: ten, End: ten.Add(2 * time.Hour),
			Description: "bring the slides", Subtasks: []model.Subtask{{ID: "s1", Title: "print"}}},
		model.Event{ID: "e2", CalendarID: "c1", Title: "Buy milk", Kind: model.KindTaskOrigin,
			Start: ten.Add(24 * time.Hour), End: ten.Add(25 * time.Hour)},
	)
	out := buf.String()
	for _, want := range []string{
		"Saturday, June 1 2024",
		"10:00-12:00  review",
		"bring the slides",
		"- print",
		"Sunday, June 2 2024",
		"Buy milk  from inbox",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "e1") {
		t.Fatalf("ids shown without ShowID:\n%s", out)
	}
}

func TestTasksShowDue(t *testing.T) {
	var buf bytes.Buffer
	pp := &PrettyPrint{Out: &buf, Location: time.UTC, ShowID: true}
	pp.Tasks(model.Task{ID: "t1", Title: "Buy milk", Due: ten})
	out := buf.String()
	if !strings.Contains(out, "t1") || !strings.Contains(out, "• Buy milk  due Jun 1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestEmptyListPrintsNone(t *testing.T) {
	var buf bytes.Buffer
	(&PrettyPrint{Out: &buf}).Tasks()
	if !strings.Contains(buf.String(), "none") {
		t.Fatalf("got %q", buf.String())
	}
}

func TestCalendarsTable(t *testing.T) {
	var buf bytes.Buffer
	pp := &PrettyPrint{Out: &buf}
	pp.Calendars("ann@example.com",
		model.Calendar{ID: "c1", Name: "home", Owner: "ann@example.com", Members: []string{"ann@example.com"}},
		model.Calendar{ID: "c2", Name: "team", Owner: "bob@example.com", Members: []string{"bob@example.com", "ann@example.com"}},
	)
	out := buf.String()
	if !strings.Contains(out, "home") || !strings.Contains(out, "you") || !strings.Contains(out, "bob@example.com") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}

func TestEmitFormats(t *testing.T) {
	ev := model.Event{ID: "e1", CalendarID: "c1", Title: "review", Start: ten, End: ten.Add(time.Hour), Kind: model.KindEvent}

	var js bytes.Buffer
	if err := (&PrettyPrint{Out: &js, Format: FormatJSON}).Emit(ev, func() { t.Fatal("pretty called") }); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"calendarId": "c1"`) {
		t.Fatalf("json:\n%s", js.String())
	}

	var ym bytes.Buffer
	if err := (&PrettyPrint{Out: &ym, Format: FormatYAML}).Emit(ev, func() { t.Fatal("pretty called") }); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ym.String(), "calendarId: c1") || !strings.HasPrefix(ym.String(), "id: e1") {
		t.Fatalf("yaml:\n%s", ym.String())
	}

	called := false
	_ = (&PrettyPrint{Format: FormatPretty}).Emit(ev, func() { called = true })
	if !called {
		t.Fatal("pretty not called")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatPretty {
		t.Fatalf("empty = %q %v", f, err)
	}
	if f, err := ParseFormat("YAML"); err != nil || f != FormatYAML {
		t.Fatalf("YAML = %q %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCountByDay(t *testing.T) {
	events := []model.Event{
		{Start: ten, End: ten.Add(time.Hour)},
		{Start: ten.Add(20 * time.Hour), End: ten.Add(40 * time.Hour)}, // June 2 06:00 to June 3 02:00
		{Start: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	count := CountByDay(ten, events, time.UTC)
	if len(count) != 30 {
		t.Fatalf("june has %d days", len(count))
	}
	if count[0] != 1 || count[1] != 1 || count[2] != 1 || count[3] != 0 || count[29] != 0 {
		t.Fatalf("counts = %v", count[:4])
	}
}
