// Package schedule stores the time-ranged events of a calendar together
// with their nested subtasks.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/logging"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/store"
)

var errNoStore = errors.New("schedule: no store configured")

// Store is the event store of all calendars.
type Store struct {
	Store  store.Client
	Logger *logging.Logger
	Bus    *notify.Bus
}

// NewEvent describes an event to create.
type NewEvent struct {
	CalendarID  string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Kind        model.Kind
}

// Patch changes some fields of an event. Nil fields are left alone.
type Patch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	Kind        *model.Kind
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Start == nil && p.End == nil && p.Kind == nil
}

func (p Patch) apply(e model.Event) model.Event {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.Kind != nil {
		e.Kind = *p.Kind
	}
	return e
}

func (s *Store) logger(calendarID string) *logging.Logger {
	return logging.Or(s.Logger).WithComponent("schedule").WithCalendar(calendarID)
}

// Create validates and stores a new event and returns its id. An invalid
// event, or one whose calendar does not exist, is rejected before anything
// is written.
func (s *Store) Create(ctx context.Context, in NewEvent) (string, error) {
	if s.Store == nil {
		return "", errNoStore
	}
	if err := requireID("calendar id", in.CalendarID); err != nil {
		return "", err
	}
	kind := in.Kind
	if kind == "" {
		kind = model.KindEvent
	}
	e := model.Event{
		CalendarID:  in.CalendarID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Start:       in.Start,
		End:         in.End,
		Kind:        kind,
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	if err := s.requireCalendar(ctx, in.CalendarID); err != nil {
		return "", err
	}
	doc, err := s.Store.Put(ctx, store.EventsPath(in.CalendarID), e.Fields())
	if err != nil {
		return "", err
	}
	s.logger(in.CalendarID).Debug("event created", "event_id", doc.ID, "kind", kind)
	s.Bus.Publish(notify.NewScheduleChangedEvent(in.CalendarID, doc.ID, "", notify.ActionCreated))
	return doc.ID, nil
}

// Get reads one event with its subtasks.
func (s *Store) Get(ctx context.Context, calendarID, eventID string) (model.Event, error) {
	e, err := s.get(ctx, calendarID, eventID)
	if err != nil {
		return model.Event{}, err
	}
	subs, err := s.Subtasks(ctx, calendarID, eventID)
	if err != nil {
		return model.Event{}, err
	}
	e.Subtasks = subs
	return e, nil
}

func (s *Store) get(ctx context.Context, calendarID, eventID string) (model.Event, error) {
	if s.Store == nil {
		return model.Event{}, errNoStore
	}
	if err := requireID("calendar id", calendarID); err != nil {
		return model.Event{}, err
	}
	if err := requireID("event id", eventID); err != nil {
		return model.Event{}, err
	}
	doc, err := s.Store.Get(ctx, store.EventPath(calendarID, eventID))
	if err != nil {
		return model.Event{}, err
	}
	return model.EventFromFields(calendarID, doc.ID, doc.Fields)
}

// Update applies patch to the event. The merged event is validated before
// it is written.
func (s *Store) Update(ctx context.Context, calendarID, eventID string, patch Patch) (model.Event, error) {
	current, err := s.get(ctx, calendarID, eventID)
	if err != nil {
		return model.Event{}, err
	}
	if patch.Empty() {
		return current, nil
	}
	next := patch.apply(current)
	if err := next.Validate(); err != nil {
		return model.Event{}, err
	}
	if err := s.write(ctx, current, next); err != nil {
		return model.Event{}, err
	}
	s.logger(calendarID).Debug("event updated", "event_id", eventID)
	s.Bus.Publish(notify.NewScheduleChangedEvent(calendarID, eventID, "", notify.ActionUpdated))
	return next, nil
}

// Move reschedules the event to start at start, keeping its duration.
func (s *Store) Move(ctx context.Context, calendarID, eventID string, start time.Time) (model.Event, error) {
	current, err := s.get(ctx, calendarID, eventID)
	if err != nil {
		return model.Event{}, err
	}
	if start.IsZero() {
		return model.Event{}, errs.Validation("start", "required")
	}
	if err := s.requireCalendar(ctx, calendarID); err != nil {
		return model.Event{}, err
	}
	next := current
	next.Start = start
	next.End = start.Add(current.Duration())
	if err := next.Validate(); err != nil {
		return model.Event{}, err
	}
	if err := s.write(ctx, current, next); err != nil {
		return model.Event{}, err
	}
	s.logger(calendarID).Debug("event moved", "event_id", eventID,
		"start", model.FormatTime(next.Start), "end", model.FormatTime(next.End))
	s.Bus.Publish(notify.NewScheduleChangedEvent(calendarID, eventID, "", notify.ActionMoved))
	return next, nil
}

// requireCalendar fails with a not found error when the calendar record is
// gone, including while a calendar delete is in progress.
func (s *Store) requireCalendar(ctx context.Context, calendarID string) error {
	_, err := s.Store.Get(ctx, store.CalendarPath(calendarID))
	if err != nil {
		return fmt.Errorf("schedule: calendar %s: %w", calendarID, err)
	}
	return nil
}

// write stores only the fields that changed.
func (s *Store) write(ctx context.Context, current, next model.Event) error {
	before, after := current.Fields(), next.Fields()
	patch := store.Patch{}
	for k, v := range after {
		if before[k] != v {
			patch[k] = v
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			patch[k] = store.DeleteField()
		}
	}
	if len(patch) == 0 {
		return nil
	}
	return s.Store.Update(ctx, store.EventPath(current.CalendarID, current.ID), patch)
}

// Delete removes the event's subtasks and then the event. Deleting a
// missing event succeeds.
func (s *Store) Delete(ctx context.Context, calendarID, eventID string) error {
	if s.Store == nil {
		return errNoStore
	}
	if err := requireID("calendar id", calendarID); err != nil {
		return err
	}
	if err := requireID("event id", eventID); err != nil {
		return err
	}
	subs, err := s.Store.ListAll(ctx, store.SubtasksPath(calendarID, eventID))
	if err != nil {
		return err
	}
	for _, sub := range subs.Docs {
		if err := s.Store.Delete(ctx, sub.Path); err != nil {
			return err
		}
	}
	if err := s.Store.Delete(ctx, store.EventPath(calendarID, eventID)); err != nil {
		return err
	}
	s.logger(calendarID).Debug("event deleted", "event_id", eventID, "subtasks", len(subs.Docs))
	s.Bus.Publish(notify.NewScheduleChangedEvent(calendarID, eventID, "", notify.ActionDeleted))
	return nil
}

// List returns the calendar's events with their subtasks, ordered by start.
func (s *Store) List(ctx context.Context, calendarID string) ([]model.Event, error) {
	if s.Store == nil {
		return nil, errNoStore
	}
	if err := requireID("calendar id", calendarID); err != nil {
		return nil, err
	}
	snap, err := s.Store.ListAll(ctx, store.EventsPath(calendarID))
	if err != nil {
		return nil, err
	}
	return s.join(ctx, calendarID, snap)
}

// Subscribe streams the calendar's events, each joined with its subtasks.
// Each delivery is the complete set ordered by start. A delivery whose
// subtask fetch fails is skipped; the next change delivers again.
func (s *Store) Subscribe(ctx context.Context, calendarID string) (<-chan []model.Event, error) {
	if s.Store == nil {
		return nil, errNoStore
	}
	if err := requireID("calendar id", calendarID); err != nil {
		return nil, err
	}
	snaps, err := s.Store.Subscribe(ctx, store.Query{Collection: store.EventsPath(calendarID), Deep: true})
	if err != nil {
		return nil, err
	}
	log := s.logger(calendarID)
	return store.Relay(ctx, snaps, func(ctx context.Context, snap store.Snapshot) ([]model.Event, bool) {
		events, err := s.join(ctx, calendarID, snap)
		if err != nil {
			log.Warn("event delivery skipped", "error", err)
			return nil, false
		}
		return events, true
	}), nil
}

// Day returns the events whose span touches the calendar day of day, in
// day's location.
func (s *Store) Day(ctx context.Context, calendarID string, day time.Time) ([]model.Event, error) {
	events, err := s.List(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	return NewAgenda(events).Day(day), nil
}

func (s *Store) join(ctx context.Context, calendarID string, snap store.Snapshot) ([]model.Event, error) {
	events := make([]model.Event, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		e, err := model.EventFromFields(calendarID, doc.ID, doc.Fields)
		if err != nil {
			s.logger(calendarID).Warn("skipping undecodable event", "path", doc.Path, "error", err)
			continue
		}
		subs, err := s.Subtasks(ctx, calendarID, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("schedule: subtasks of %s: %w", doc.ID, err)
		}
		e.Subtasks = subs
		events = append(events, e)
	}
	model.SortEvents(events)
	return events, nil
}

func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
		return errs.Validation(field, "required")
	}
	return nil
}
