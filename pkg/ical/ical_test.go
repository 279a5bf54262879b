package ical

import (
	"strings"
	"testing"
	"time"

	"tableflip.dev/taskly/pkg/model"
)

var ten = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestExport(t *testing.T) {
	cal := model.Calendar{ID: "c1", Name: "home", Owner: "ann@example.com", Members: []string{"ann@example.com"}}
	events := []model.Event{
		{ID: "e2", CalendarID: "c1", Title: "Buy milk", Start: ten.Add(2 * time.Hour), End: ten.Add(3 * time.Hour), Kind: model.KindTaskOrigin},
		{ID: "e1", CalendarID: "c1", Title: "standup", Description: "daily", Start: ten, End: ten.Add(15 * time.Minute)},
	}
	out, err := Export(cal, events)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"PRODID:" + ProductID,
		"UID:e1@taskly",
		"UID:e2@taskly",
		"SUMMARY:Buy milk",
		"DTSTART:20240601T100000Z",
		"DTEND:20240601T101500Z",
		"CATEGORIES:task-origin",
		"END:VCALENDAR",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
	if strings.Index(out, "UID:e1@taskly") > strings.Index(out, "UID:e2@taskly") {
		t.Error("events must be written in start order")
	}
}

func TestExportRejectsInvertedEvent(t *testing.T) {
	_, err := Export(model.Calendar{Name: "home"}, []model.Event{{ID: "e1", Title: "x", Start: ten, End: ten.Add(-time.Hour)}})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestParseReadsExport(t *testing.T) {
	events := []model.Event{
		{ID: "e1", CalendarID: "c1", Title: "standup", Description: "daily", Start: ten, End: ten.Add(15 * time.Minute), Kind: model.KindEvent},
		{ID: "e2", CalendarID: "c1", Title: "Buy milk", Start: ten.Add(time.Hour), End: ten.Add(2 * time.Hour), Kind: model.KindTaskOrigin},
	}
	out, err := Export(model.Calendar{Name: "home"}, events)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	got, err := Parse(strings.NewReader(out), "c9")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events", len(got))
	}
	for i, want := range events {
		e := got[i]
		if e.ID != want.ID || e.CalendarID != "c9" || e.Title != want.Title || e.Kind != want.Kind {
			t.Errorf("event %d = %+v", i, e)
		}
		if !e.Start.Equal(want.Start) || !e.End.Equal(want.End) {
			t.Errorf("event %d spans %v..%v", i, e.Start, e.End)
		}
	}
}

func TestParseForeignUID(t *testing.T) {
	body := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//other//EN",
		"BEGIN:VEVENT",
		"UID:abc@elsewhere",
		"DTSTAMP:20240601T000000Z",
		"DTSTART:20240601T100000Z",
		"DTEND:20240601T110000Z",
		"SUMMARY:dentist",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	got, err := Parse(strings.NewReader(body), "c1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].ID != "" || got[0].Title != "dentist" || got[0].Duration() != time.Hour {
		t.Fatalf("got %+v", got)
	}
}
