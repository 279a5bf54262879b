// Package ical converts calendars to and from iCalendar (RFC 5545) text.
package ical

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"tableflip.dev/taskly/pkg/model"
)

// ProductID identifies taskly as the producer of exported calendars.
const ProductID = "-//tableflip.dev//taskly//EN"

// UIDSuffix is appended to event ids to form globally unique UIDs.
const UIDSuffix = "@taskly"

// Export renders cal and its events as a VCALENDAR with one VEVENT per
// event. Times are written in UTC.
func Export(cal model.Calendar, events []model.Event) (string, error) {
	out := ics.NewCalendar()
	out.SetMethod(ics.MethodPublish)
	out.SetProductId(ProductID)
	out.SetXWRCalName(cal.Name)

	stamp := time.Now().UTC()
	sorted := append([]model.Event(nil), events...)
	model.SortEvents(sorted)
	for _, e := range sorted {
		if e.ID == "" {
			return "", fmt.Errorf("ical: event %q has no id", e.Title)
		}
		if e.End.Before(e.Start) {
			return "", fmt.Errorf("ical: event %s ends before it starts", e.ID)
		}
		ve := out.AddEvent(e.ID + UIDSuffix)
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(e.Start.UTC())
		ve.SetEndAt(e.End.UTC())
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		kind := e.Kind
		if kind == "" {
			kind = model.KindEvent
		}
		ve.AddProperty(ics.ComponentPropertyCategories, string(kind))
	}
	return out.Serialize(), nil
}

// Parse reads the VEVENTs of an iCalendar stream as events of calendarID.
// Ids are taken from UIDs exported by taskly and left empty otherwise.
// Events without a start are skipped; a missing end means a zero length
// event.
func Parse(r io.Reader, calendarID string) ([]model.Event, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ical: parse: %w", err)
	}
	var events []model.Event
	for _, ve := range cal.Events() {
		start, err := ve.GetStartAt()
		if err != nil {
			continue
		}
		end, err := ve.GetEndAt()
		if err != nil {
			end = start
		}
		e := model.Event{
			CalendarID: calendarID,
			Start:      start.UTC(),
			End:        end.UTC(),
			Kind:       model.KindEvent,
		}
		if p := ve.GetProperty(ics.ComponentPropertyUniqueId); p != nil {
			if id, ok := strings.CutSuffix(p.Value, UIDSuffix); ok {
				e.ID = id
			}
		}
		if p := ve.GetProperty(ics.ComponentPropertySummary); p != nil {
			e.Title = p.Value
		}
		if p := ve.GetProperty(ics.ComponentPropertyDescription); p != nil {
			e.Description = p.Value
		}
		if p := ve.GetProperty(ics.ComponentPropertyCategories); p != nil {
			if kind, err := model.ParseKind(p.Value); err == nil {
				e.Kind = kind
			}
		}
		events = append(events, e)
	}
	model.SortEvents(events)
	return events, nil
}
