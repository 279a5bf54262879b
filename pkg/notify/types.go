// Package notify carries in-process notifications between taskly
// components: replica replacements, registry and schedule mutations, cascade
// progress and drag gesture transitions. Event types follow the
// "category.action" convention.
package notify

import "time"

// Event is implemented by every notification.
type Event interface {
	EventType() string
	Timestamp() time.Time
}

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// Event type names.
const (
	TypeReplicaUpdated  = "replica.updated"
	TypeCalendarChanged = "calendar.changed"
	TypeCascadeProgress = "cascade.progress"
	TypeScheduleChanged = "schedule.changed"
	TypeInboxChanged    = "inbox.changed"
	TypeDragState       = "drag.state"
	TypeDragOutcome     = "drag.outcome"
)

// Mutation actions carried by change events.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionMoved    = "moved"
	ActionShared   = "shared"
	ActionUnshared = "unshared"
	ActionDeleted  = "deleted"
)

// ReplicaUpdatedEvent is emitted each time a live replica is replaced.
type ReplicaUpdatedEvent struct {
	baseEvent
	Key     string `json:"key"`
	Version uint64 `json:"version"`
	Size    int    `json:"size"`
}

func NewReplicaUpdatedEvent(key string, version uint64, size int) ReplicaUpdatedEvent {
	return ReplicaUpdatedEvent{
		baseEvent: newBaseEvent(TypeReplicaUpdated),
		Key:       key,
		Version:   version,
		Size:      size,
	}
}

// CalendarChangedEvent is emitted after a registry mutation is acknowledged.
type CalendarChangedEvent struct {
	baseEvent
	CalendarID string `json:"calendarId"`
	Action     string `json:"action"`
	Email      string `json:"email,omitempty"` // member affected by share/unshare
}

func NewCalendarChangedEvent(calendarID, action, email string) CalendarChangedEvent {
	return CalendarChangedEvent{
		baseEvent:  newBaseEvent(TypeCalendarChanged),
		CalendarID: calendarID,
		Action:     action,
		Email:      email,
	}
}

// CascadeProgressEvent reports a finished step of a calendar delete.
type CascadeProgressEvent struct {
	baseEvent
	CalendarID string `json:"calendarId"`
	Step       string `json:"step"`
	Deleted    int    `json:"deleted"`
	Remaining  int    `json:"remaining"`
}

func NewCascadeProgressEvent(calendarID, step string, deleted, remaining int) CascadeProgressEvent {
	return CascadeProgressEvent{
		baseEvent:  newBaseEvent(TypeCascadeProgress),
		CalendarID: calendarID,
		Step:       step,
		Deleted:    deleted,
		Remaining:  remaining,
	}
}

// ScheduleChangedEvent is emitted after an event or subtask mutation.
type ScheduleChangedEvent struct {
	baseEvent
	CalendarID string `json:"calendarId"`
	EventID    string `json:"eventId"`
	SubtaskID  string `json:"subtaskId,omitempty"`
	Action     string `json:"action"`
}

func NewScheduleChangedEvent(calendarID, eventID, subtaskID, action string) ScheduleChangedEvent {
	return ScheduleChangedEvent{
		baseEvent:  newBaseEvent(TypeScheduleChanged),
		CalendarID: calendarID,
		EventID:    eventID,
		SubtaskID:  subtaskID,
		Action:     action,
	}
}

// InboxChangedEvent is emitted after a task is created or deleted.
type InboxChangedEvent struct {
	baseEvent
	UserID string `json:"userId"`
	TaskID string `json:"taskId"`
	Action string `json:"action"`
}

func NewInboxChangedEvent(userID, taskID, action string) InboxChangedEvent {
	return InboxChangedEvent{
		baseEvent: newBaseEvent(TypeInboxChanged),
		UserID:    userID,
		TaskID:    taskID,
		Action:    action,
	}
}

// DragStateEvent records a gesture state transition.
type DragStateEvent struct {
	baseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

func NewDragStateEvent(from, to string) DragStateEvent {
	return DragStateEvent{baseEvent: newBaseEvent(TypeDragState), From: from, To: to}
}

// DragOutcomeEvent records how a drop ended.
type DragOutcomeEvent struct {
	baseEvent
	Action     string `json:"action"`
	SourceKind string `json:"sourceKind"`
	SourceID   string `json:"sourceId"`
	EventID    string `json:"eventId,omitempty"`
	CalendarID string `json:"calendarId,omitempty"`
	Err        string `json:"error,omitempty"`
}

func NewDragOutcomeEvent(action, sourceKind, sourceID, eventID, calendarID string, err error) DragOutcomeEvent {
	e := DragOutcomeEvent{
		baseEvent:  newBaseEvent(TypeDragOutcome),
		Action:     action,
		SourceKind: sourceKind,
		SourceID:   sourceID,
		EventID:    eventID,
		CalendarID: calendarID,
	}
	if err != nil {
		e.Err = err.Error()
	}
	return e
}
