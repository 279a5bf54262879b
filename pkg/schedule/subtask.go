package schedule

import (
	"context"
	"sort"
	"strings"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/store"
)

// SubtaskPatch changes some fields of a subtask. Nil fields are left alone.
type SubtaskPatch struct {
	Title       *string
	Description *string
}

// AddSubtask creates a subtask under an existing event and returns its id.
func (s *Store) AddSubtask(ctx context.Context, calendarID, eventID, title, description string) (string, error) {
	if _, err := s.get(ctx, calendarID, eventID); err != nil {
		return "", err
	}
	sub := model.Subtask{EventID: eventID, Title: strings.TrimSpace(title), Description: description}
	if err := sub.Validate(); err != nil {
		return "", err
	}
	doc, err := s.Store.Put(ctx, store.SubtasksPath(calendarID, eventID), sub.Fields())
	if err != nil {
		return "", err
	}
	s.logger(calendarID).Debug("subtask added", "event_id", eventID, "subtask_id", doc.ID)
	s.Bus.Publish(notify.NewScheduleChangedEvent(calendarID, eventID, doc.ID, notify.ActionCreated))
	return doc.ID, nil
}

// UpdateSubtask applies patch to a subtask.
func (s *Store) UpdateSubtask(ctx context.Context, calendarID, eventID, subtaskID string, patch SubtaskPatch) error {
	if s.Store == nil {
		return errNoStore
	}
	if err := requireSubtaskIDs(calendarID, eventID, subtaskID); err != nil {
		return err
	}
	p := store.Patch{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return errs.Validation("title", "required")
		}
		p[model.FieldTitle] = title
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			p[model.FieldDescription] = store.DeleteField()
		} else {
			p[model.FieldDescription] = *patch.Description
		}
	}
	if len(p) == 0 {
		return nil
	}
	if err := s.Store.Update(ctx, store.SubtaskPath(calendarID, eventID, subtaskID), p); err != nil {
		return err
	}
	s.Bus.Publish(notify.NewScheduleChangedEvent(calendarID, eventID, subtaskID, notify.ActionUpdated))
	return nil
}

// DeleteSubtask removes one subtask.
func (s *Store) DeleteSubtask(ctx context.Context, calendarID, eventID, subtaskID string) error {
	if s.Store == nil {
		return errNoStore
	}
	if err := requireSubtaskIDs(calendarID, eventID, subtaskID); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, store.SubtaskPath(calendarID, eventID, subtaskID)); err != nil {
		return err
	}
	s.Bus.Publish(notify.NewScheduleChangedEvent(calendarID, eventID, subtaskID, notify.ActionDeleted))
	return nil
}

// Subtasks lists an event's subtasks ordered by title, then id.
func (s *Store) Subtasks(ctx context.Context, calendarID, eventID string) ([]model.Subtask, error) {
	if s.Store == nil {
		return nil, errNoStore
	}
	if err := requireID("calendar id", calendarID); err != nil {
		return nil, err
	}
	if err := requireID("event id", eventID); err != nil {
		return nil, err
	}
	snap, err := s.Store.ListAll(ctx, store.SubtasksPath(calendarID, eventID))
	if err != nil {
		return nil, err
	}
	subs := make([]model.Subtask, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		sub, err := model.SubtaskFromFields(eventID, doc.ID, doc.Fields)
		if err != nil {
			s.logger(calendarID).Warn("skipping undecodable subtask", "path", doc.Path, "error", err)
			continue
		}
		subs = append(subs, sub)
	}
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].Title == subs[j].Title {
			return subs[i].ID < subs[j].ID
		}
		return subs[i].Title < subs[j].Title
	})
	return subs, nil
}

func requireSubtaskIDs(calendarID, eventID, subtaskID string) error {
	if err := requireID("calendar id", calendarID); err != nil {
		return err
	}
	if err := requireID("event id", eventID); err != nil {
		return err
	}
	return requireID("subtask id", subtaskID)
}
