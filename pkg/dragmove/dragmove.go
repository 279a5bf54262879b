// Package dragmove turns drag gestures into store mutations. Dropping a task
// on a calendar slot promotes it into an event; dropping an event on a slot
// reschedules it.
package dragmove

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/logging"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/schedule"
)

// DefaultDuration is the length of an event promoted from a task.
const DefaultDuration = time.Hour

var (
	// ErrBusy is returned by Begin while another gesture is in progress.
	ErrBusy = errors.New("dragmove: a drag is already in progress")
	// ErrNotDragging is returned by Drop without a preceding Begin.
	ErrNotDragging = errors.New("dragmove: nothing is being dragged")
	// ErrTaskRetained marks a promotion whose event was created but whose
	// task could not be removed. Both now exist.
	ErrTaskRetained = errors.New("dragmove: task kept after promotion")
)

type SourceKind string

const (
	SourceTask  SourceKind = "task"
	SourceEvent SourceKind = "event"
)

type TargetKind string

const (
	TargetSlot TargetKind = "calendar-slot"
	TargetNone TargetKind = "none"
)

// Source is the item being dragged. CalendarID is required for events.
type Source struct {
	Kind       SourceKind
	ID         string
	CalendarID string
}

// Target is where the item was released. Slot is the resolved timestamp of
// the calendar cell under the pointer.
type Target struct {
	Kind       TargetKind
	CalendarID string
	Slot       time.Time
}

func (t Target) resolved() bool {
	return t.Kind == TargetSlot && t.CalendarID != "" && !t.Slot.IsZero()
}

type State int

const (
	Idle State = iota
	Dragging
	Dropping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Dropping:
		return "dropping"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Action string

const (
	ActionPromoted    Action = "promoted"
	ActionRescheduled Action = "rescheduled"
	ActionNoop        Action = "noop"
)

// Outcome describes what a drop did.
type Outcome struct {
	Action     Action `json:"action"`
	EventID    string `json:"eventId,omitempty"`
	CalendarID string `json:"calendarId,omitempty"`
	// TaskRetained is set when a promoted task could not be removed.
	TaskRetained bool `json:"taskRetained,omitempty"`
}

// TaskLookup answers from the client's local inbox replica.
type TaskLookup interface {
	Task(id string) (model.Task, bool)
}

// EventLookup answers from the client's local replica of a calendar.
type EventLookup interface {
	Event(calendarID, id string) (model.Event, bool)
}

// InboxStore reads and removes tasks in the shared store.
type InboxStore interface {
	Get(ctx context.Context, userID, taskID string) (model.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
}

// EventWriter creates and moves events in the shared store.
type EventWriter interface {
	Create(ctx context.Context, in schedule.NewEvent) (string, error)
	Move(ctx context.Context, calendarID, eventID string, start time.Time) (model.Event, error)
}

// Coordinator is the gesture state machine of one client. Tasks and Events
// are optional local checks; Inbox and Schedule are required.
type Coordinator struct {
	Tasks    TaskLookup
	Events   EventLookup
	Inbox    InboxStore
	Schedule EventWriter
	UserID   string
	Logger   *logging.Logger
	Bus      *notify.Bus

	mu     sync.Mutex
	state  State
	source Source
}

func (c *Coordinator) logger() *logging.Logger {
	return logging.Or(c.Logger).WithComponent("dragmove").WithUser(c.UserID)
}

// State reports the current gesture state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// transition must be called with c.mu held. The returned event is published
// after the lock is released.
func (c *Coordinator) transition(to State) notify.Event {
	from := c.state
	c.state = to
	return notify.NewDragStateEvent(from.String(), to.String())
}

// Begin starts dragging src. It is only valid while idle.
func (c *Coordinator) Begin(src Source) error {
	switch {
	case src.ID == "":
		return errs.Validation("source id", "required")
	case src.Kind != SourceTask && src.Kind != SourceEvent:
		return errs.Validation("source kind", fmt.Sprintf("unknown kind %q", src.Kind))
	case src.Kind == SourceEvent && src.CalendarID == "":
		return errs.Validation("source calendar", "required for events")
	}
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.source = src
	ev := c.transition(Dragging)
	c.mu.Unlock()
	c.Bus.Publish(ev)
	return nil
}

// Cancel abandons a drag without touching the store. A drop already being
// applied is not interrupted.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if c.state != Dragging {
		c.mu.Unlock()
		return
	}
	c.source = Source{}
	ev := c.transition(Idle)
	c.mu.Unlock()
	c.Bus.Publish(ev)
}

// Drop releases the dragged item over target and applies the resulting
// mutation. A target that did not resolve to a calendar slot is a cancelled
// drop. The coordinator is idle again when Drop returns.
func (c *Coordinator) Drop(ctx context.Context, target Target) (Outcome, error) {
	c.mu.Lock()
	if c.state != Dragging {
		c.mu.Unlock()
		return Outcome{}, ErrNotDragging
	}
	src := c.source
	if !target.resolved() {
		c.source = Source{}
		ev := c.transition(Idle)
		c.mu.Unlock()
		c.Bus.Publish(ev)
		c.publish(src, Outcome{Action: ActionNoop}, nil)
		return Outcome{Action: ActionNoop}, nil
	}
	ev := c.transition(Dropping)
	c.mu.Unlock()
	c.Bus.Publish(ev)

	var (
		out Outcome
		err error
	)
	switch src.Kind {
	case SourceTask:
		out, err = c.promote(ctx, src, target)
	case SourceEvent:
		out, err = c.reschedule(ctx, src, target)
	}

	c.mu.Lock()
	c.source = Source{}
	ev = c.transition(Idle)
	c.mu.Unlock()
	c.Bus.Publish(ev)

	c.publish(src, out, err)
	return out, err
}

func (c *Coordinator) publish(src Source, out Outcome, err error) {
	c.Bus.Publish(notify.NewDragOutcomeEvent(string(out.Action), string(src.Kind), src.ID, out.EventID, out.CalendarID, err))
}

// promote creates the event and, only once the store confirmed it, removes
// the task.
func (c *Coordinator) promote(ctx context.Context, src Source, target Target) (Outcome, error) {
	log := c.logger().WithCalendar(target.CalendarID).With("task_id", src.ID)
	lost := &errs.LostSourceError{Kind: string(SourceTask), ID: src.ID}
	if c.Tasks != nil {
		if _, ok := c.Tasks.Task(src.ID); !ok {
			log.Warn("promotion aborted", "error", lost)
			return Outcome{}, lost
		}
	}
	task, err := c.Inbox.Get(ctx, c.UserID, src.ID)
	if errs.Is(err, errs.ErrNotFound) {
		log.Warn("promotion aborted", "error", lost)
		return Outcome{}, lost
	}
	if err != nil {
		return Outcome{}, err
	}

	start := target.Slot.UTC()
	eventID, err := c.Schedule.Create(ctx, schedule.NewEvent{
		CalendarID:  target.CalendarID,
		Title:       task.Title,
		Description: task.Description,
		Start:       start,
		End:         start.Add(DefaultDuration),
		Kind:        model.KindTaskOrigin,
	})
	if err != nil {
		log.Warn("promotion failed, task kept", "error", err)
		return Outcome{}, err
	}
	out := Outcome{Action: ActionPromoted, EventID: eventID, CalendarID: target.CalendarID}

	if err := c.Inbox.Delete(ctx, c.UserID, src.ID); err != nil {
		out.TaskRetained = true
		log.Warn("event created but task kept", "event_id", eventID, "error", err)
		return out, fmt.Errorf("%w: event %s: %w", ErrTaskRetained, eventID, err)
	}
	log.Info("promotion committed", "event_id", eventID)
	return out, nil
}

// reschedule moves an event within its own calendar, keeping its duration.
func (c *Coordinator) reschedule(ctx context.Context, src Source, target Target) (Outcome, error) {
	log := c.logger().WithCalendar(src.CalendarID).With("event_id", src.ID)
	if target.CalendarID != src.CalendarID {
		return Outcome{}, errs.Validation("calendar", "events cannot move between calendars")
	}
	lost := &errs.LostSourceError{Kind: string(SourceEvent), ID: src.ID}
	if c.Events != nil {
		if _, ok := c.Events.Event(src.CalendarID, src.ID); !ok {
			log.Warn("reschedule aborted", "error", lost)
			return Outcome{}, lost
		}
	}
	moved, err := c.Schedule.Move(ctx, src.CalendarID, src.ID, target.Slot.UTC())
	if errs.Is(err, errs.ErrNotFound) {
		log.Warn("reschedule aborted", "error", lost)
		return Outcome{}, lost
	}
	if err != nil {
		return Outcome{}, err
	}
	log.Info("event rescheduled", "start", model.FormatTime(moved.Start))
	return Outcome{Action: ActionRescheduled, EventID: moved.ID, CalendarID: moved.CalendarID}, nil
}
