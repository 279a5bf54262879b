// Package model defines the records taskly keeps in the document store:
// calendars with their events and subtasks, and each user's personal tasks.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tableflip.dev/taskly/pkg/errs"
)

// Kind distinguishes events created directly from events promoted from a
// task. It affects presentation only.
type Kind string

const (
	KindEvent      Kind = "event"
	KindTaskOrigin Kind = "task-origin"
)

// ParseKind converts raw to a Kind. The empty string is KindEvent.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case "":
		return KindEvent, nil
	case KindEvent, KindTaskOrigin:
		return k, nil
	default:
		return "", errs.Validation("kind", fmt.Sprintf("unknown kind %q", raw))
	}
}

// User is the identity handed to taskly by the external identity provider.
// Email is the sharing key; ID owns the personal task namespace.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return errs.Validation("user id", "required")
	}
	if NormalizeEmail(u.Email) == "" {
		return errs.Validation("email", "required")
	}
	return nil
}

// NormalizeEmail trims and lower-cases an email so membership checks are
// insensitive to how it was typed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Calendar is a shareable container of events.
type Calendar struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Owner   string   `json:"owner"`
	Members []string `json:"members"`
}

// HasMember reports whether email is in the membership set.
func (c Calendar) HasMember(email string) bool {
	email = NormalizeEmail(email)
	for _, m := range c.Members {
		if NormalizeEmail(m) == email {
			return true
		}
	}
	return false
}

func (c Calendar) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errs.Validation("name", "required")
	}
	if NormalizeEmail(c.Owner) == "" {
		return errs.Validation("owner", "required")
	}
	if !c.HasMember(c.Owner) {
		return errs.Validation("members", "owner must be a member")
	}
	return nil
}

// Event is a time-ranged entry on one calendar.
type Event struct {
	ID          string    `json:"id"`
	CalendarID  string    `json:"calendarId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Kind        Kind      `json:"kind"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
}

// Duration is End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errs.Validation("title", "required")
	}
	if e.Start.IsZero() {
		return errs.Validation("start", "required")
	}
	if e.End.IsZero() {
		return errs.Validation("end", "required")
	}
	if e.Start.After(e.End) {
		return errs.Validation("end", fmt.Sprintf("%s is before start %s", FormatTime(e.End), FormatTime(e.Start)))
	}
	if _, err := ParseKind(string(e.Kind)); err != nil {
		return err
	}
	return nil
}

// Subtask is a checklist item nested under one event.
type Subtask struct {
	ID          string `json:"id"`
	EventID     string `json:"eventId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (s Subtask) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return errs.Validation("title", "required")
	}
	return nil
}

// Task is an unscheduled item in a user's personal inbox. Due is an
// optional reminder date and never schedules anything by itself.
type Task struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Due         time.Time `json:"due,omitempty"`
}

// HasDue reports whether a due date was set.
func (t Task) HasDue() bool {
	return !t.Due.IsZero()
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return errs.Validation("owner", "required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errs.Validation("title", "required")
	}
	return nil
}

// SortTasks orders tasks by creation time, oldest first, with the id as a
// tie breaker so the order is stable between deliveries.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		left, right := tasks[i], tasks[j]
		if left.CreatedAt.Equal(right.CreatedAt) {
			return left.ID < right.ID
		}
		return left.CreatedAt.Before(right.CreatedAt)
	})
}

// SortEvents orders events by start, then end, then id.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		left, right := events[i], events[j]
		switch {
		case !left.Start.Equal(right.Start):
			return left.Start.Before(right.Start)
		case !left.End.Equal(right.End):
			return left.End.Before(right.End)
		default:
			return left.ID < right.ID
		}
	})
}

// SortCalendars orders calendars by name, then id.
func SortCalendars(cals []Calendar) {
	sort.SliceStable(cals, func(i, j int) bool {
		if cals[i].Name == cals[j].Name {
			return cals[i].ID < cals[j].ID
		}
		return strings.ToLower(cals[i].Name) < strings.ToLower(cals[j].Name)
	})
}
