package options

import (
	"errors"
	"strings"
	"testing"
	"time"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/printers"
)

func TestGetAt(t *testing.T) {
	o := &AtOptions{AtString: "2024-06-01T10:00:00Z"}
	got, err := o.GetAt()
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %v", got)
	}
	if _, err := (&AtOptions{}).GetAt(); err == nil {
		t.Fatal("expected --at to be required")
	}
}

func TestGetAtRelativeToNow(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local)
	o := &AtOptions{AtString: "09:30", Now: func() time.Time { return now }}
	got, err := o.GetAt()
	if err != nil {
		t.Fatal(err)
	}
	if got.Hour() != 9 || got.Minute() != 30 || got.Day() != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestGetFor(t *testing.T) {
	d, err := (&SpanOptions{ForString: "1h30m"}).GetFor()
	if err != nil || d != 90*time.Minute {
		t.Fatalf("got %v %v", d, err)
	}
	if _, err := (&SpanOptions{ForString: "soon"}).GetFor(); err == nil {
		t.Fatal("expected error")
	}
}

func TestCalendarRequire(t *testing.T) {
	o := &CalendarOptions{CalendarID: "  c1 "}
	if err := o.Require(); err != nil || o.CalendarID != "c1" {
		t.Fatalf("got %q %v", o.CalendarID, err)
	}
	if err := (&CalendarOptions{}).Require(); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleErrorDescribesPretty(t *testing.T) {
	o := &OutputOptions{Format: printers.FormatPretty}
	err := o.HandleError(errs.Validation("title", "required"))
	if !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("kind lost: %v", err)
	}
	if got := err.Error(); !strings.HasPrefix(got, "validation: ") {
		t.Fatalf("got %q", got)
	}
	if o.HandleError(nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}

func TestHandleErrorKeepsErrorForJSON(t *testing.T) {
	o := &OutputOptions{Format: printers.FormatJSON}
	want := errors.New("boom")
	if err := o.HandleError(want); !errors.Is(err, want) {
		t.Fatalf("got %v", err)
	}
}

func TestPrinterRejectsUnknownFormat(t *testing.T) {
	if _, err := (&OutputOptions{Format: "xml"}).Printer(false); err == nil {
		t.Fatal("expected error")
	}
	pp, err := (&OutputOptions{Format: "JSON"}).Printer(true)
	if err != nil || pp.Format != printers.FormatJSON || !pp.ShowID {
		t.Fatalf("got %+v %v", pp, err)
	}
}
