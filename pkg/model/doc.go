package model

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Persisted field names. These are the wire shape of each record.
const (
	FieldName        = "name"
	FieldOwner       = "owner"
	FieldMembers     = "members"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStart       = "start"
	FieldEnd         = "end"
	FieldKind        = "kind"
	FieldCreatedAt   = "createdAt"
	FieldDue         = "due"
)

type calendarDoc struct {
	Name    string   `mapstructure:"name"`
	Owner   string   `mapstructure:"owner"`
	Members []string `mapstructure:"members"`
}

type eventDoc struct {
	Title       string    `mapstructure:"title"`
	Description string    `mapstructure:"description"`
	Start       time.Time `mapstructure:"start"`
	End         time.Time `mapstructure:"end"`
	Kind        string    `mapstructure:"kind"`
}

type subtaskDoc struct {
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
}

type taskDoc struct {
	Title       string    `mapstructure:"title"`
	Description string    `mapstructure:"description"`
	CreatedAt   time.Time `mapstructure:"createdAt"`
	Due         time.Time `mapstructure:"due"`
}

func decode(fields map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(fields)
}

// Fields returns the persisted shape of the calendar.
func (c Calendar) Fields() map[string]any {
	members := make([]any, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, NormalizeEmail(m))
	}
	return map[string]any{
		FieldName:    c.Name,
		FieldOwner:   NormalizeEmail(c.Owner),
		FieldMembers: members,
	}
}

// CalendarFromFields decodes a calendar document.
func CalendarFromFields(id string, fields map[string]any) (Calendar, error) {
	var d calendarDoc
	if err := decode(fields, &d); err != nil {
		return Calendar{}, fmt.Errorf("model: decode calendar %s: %w", id, err)
	}
	return Calendar{ID: id, Name: d.Name, Owner: d.Owner, Members: d.Members}, nil
}

// Fields returns the persisted shape of the event. Subtasks live in their
// own collection and are not part of it.
func (e Event) Fields() map[string]any {
	kind := e.Kind
	if kind == "" {
		kind = KindEvent
	}
	f := map[string]any{
		FieldTitle: e.Title,
		FieldStart: FormatTime(e.Start),
		FieldEnd:   FormatTime(e.End),
		FieldKind:  string(kind),
	}
	if e.Description != "" {
		f[FieldDescription] = e.Description
	}
	return f
}

// EventFromFields decodes an event document.
func EventFromFields(calendarID, id string, fields map[string]any) (Event, error) {
	var d eventDoc
	if err := decode(fields, &d); err != nil {
		return Event{}, fmt.Errorf("model: decode event %s: %w", id, err)
	}
	kind, err := ParseKind(d.Kind)
	if err != nil {
		return Event{}, fmt.Errorf("model: decode event %s: %w", id, err)
	}
	return Event{
		ID:          id,
		CalendarID:  calendarID,
		Title:       d.Title,
		Description: d.Description,
		Start:       d.Start,
		End:         d.End,
		Kind:        kind,
	}, nil
}

// Fields returns the persisted shape of the subtask.
func (s Subtask) Fields() map[string]any {
	f := map[string]any{FieldTitle: s.Title}
	if s.Description != "" {
		f[FieldDescription] = s.Description
	}
	return f
}

// SubtaskFromFields decodes a subtask document.
func SubtaskFromFields(eventID, id string, fields map[string]any) (Subtask, error) {
	var d subtaskDoc
	if err := decode(fields, &d); err != nil {
		return Subtask{}, fmt.Errorf("model: decode subtask %s: %w", id, err)
	}
	return Subtask{ID: id, EventID: eventID, Title: d.Title, Description: d.Description}, nil
}

// Fields returns the persisted shape of the task.
func (t Task) Fields() map[string]any {
	f := map[string]any{
		FieldTitle:     t.Title,
		FieldCreatedAt: FormatTime(t.CreatedAt),
	}
	if t.Description != "" {
		f[FieldDescription] = t.Description
	}
	if t.HasDue() {
		f[FieldDue] = FormatTime(t.Due)
	}
	return f
}

// TaskFromFields decodes a task document.
func TaskFromFields(ownerID, id string, fields map[string]any) (Task, error) {
	var d taskDoc
	if err := decode(fields, &d); err != nil {
		return Task{}, fmt.Errorf("model: decode task %s: %w", id, err)
	}
	return Task{
		ID:          id,
		OwnerID:     ownerID,
		Title:       d.Title,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		Due:         d.Due,
	}, nil
}
