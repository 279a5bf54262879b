// Package session wires one logical client: an identity, the components
// acting on its behalf, and the live views it currently observes.
package session

import (
	"context"
	"sync"

	"tableflip.dev/taskly/pkg/calendar"
	"tableflip.dev/taskly/pkg/dragmove"
	"tableflip.dev/taskly/pkg/inbox"
	"tableflip.dev/taskly/pkg/logging"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/projection"
	"tableflip.dev/taskly/pkg/schedule"
	"tableflip.dev/taskly/pkg/store"
)

// Client is one user's client. Identity is fixed for its lifetime.
type Client struct {
	User       model.User
	Registry   *calendar.Registry
	Schedule   *schedule.Store
	Inbox      *inbox.Inbox
	Projection *projection.Projection
	Drag       *dragmove.Coordinator
	Logger     *logging.Logger
	Bus        *notify.Bus

	mu        sync.Mutex
	tasks     *projection.View[model.Task]
	calendars *projection.View[model.Calendar]
	events    *projection.View[model.Event]
	selected  string
}

// Options tune New. The zero value is usable.
type Options struct {
	Logger *logging.Logger
	Bus    *notify.Bus
	// Concurrency bounds parallel deletes of a calendar cascade.
	Concurrency int
}

// New builds a client for user on top of st.
func New(user model.User, st store.Client, opts Options) (*Client, error) {
	user.Email = model.NormalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return nil, err
	}
	log := logging.Or(opts.Logger).WithUser(user.ID)
	bus := opts.Bus
	if bus == nil {
		bus = notify.NewBus(log)
	}
	c := &Client{
		User:       user,
		Registry:   &calendar.Registry{Store: st, Logger: log, Bus: bus, Concurrency: opts.Concurrency},
		Schedule:   &schedule.Store{Store: st, Logger: log, Bus: bus},
		Inbox:      &inbox.Inbox{Store: st, Logger: log, Bus: bus},
		Projection: &projection.Projection{Logger: log, Bus: bus},
		Logger:     log,
		Bus:        bus,
	}
	c.Drag = &dragmove.Coordinator{
		Tasks:    c,
		Events:   c,
		Inbox:    c.Inbox,
		Schedule: c.Schedule,
		UserID:   user.ID,
		Logger:   log,
		Bus:      bus,
	}
	return c, nil
}

func inboxKey(userID string) string   { return "inbox:" + userID }
func calendarsKey(email string) string { return "calendars:" + email }
func eventsKey(calendarID string) string {
	return "calendar:" + calendarID
}

// live reports whether v is still receiving.
func live[T any](v *projection.View[T]) bool {
	if v == nil {
		return false
	}
	select {
	case <-v.Done():
		return false
	default:
		return true
	}
}

// OpenInbox starts observing the user's tasks. Calling it again returns the
// open view, or a new one once the previous view stopped.
func (c *Client) OpenInbox(ctx context.Context) (*projection.View[model.Task], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if live(c.tasks) {
		return c.tasks, nil
	}
	v, err := projection.Open(ctx, c.Projection, inboxKey(c.User.ID), func(ctx context.Context) (<-chan []model.Task, error) {
		return c.Inbox.Subscribe(ctx, c.User.ID)
	})
	if err != nil {
		return nil, err
	}
	c.tasks = v
	return v, nil
}

// OpenCalendars starts observing the calendars the user is a member of.
func (c *Client) OpenCalendars(ctx context.Context) (*projection.View[model.Calendar], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if live(c.calendars) {
		return c.calendars, nil
	}
	v, err := projection.Open(ctx, c.Projection, calendarsKey(c.User.Email), func(ctx context.Context) (<-chan []model.Calendar, error) {
		return c.Registry.ListVisible(ctx, c.User.Email)
	})
	if err != nil {
		return nil, err
	}
	c.calendars = v
	return v, nil
}

// SelectCalendar switches the observed calendar. The previous calendar's
// view is closed first.
func (c *Client) SelectCalendar(ctx context.Context, calendarID string) (*projection.View[model.Event], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if live(c.events) && c.selected == calendarID {
		return c.events, nil
	}
	if c.events != nil {
		c.events.Close()
		c.events, c.selected = nil, ""
	}
	v, err := projection.Open(ctx, c.Projection, eventsKey(calendarID), func(ctx context.Context) (<-chan []model.Event, error) {
		return c.Schedule.Subscribe(ctx, calendarID)
	})
	if err != nil {
		return nil, err
	}
	c.events, c.selected = v, calendarID
	c.Logger.Info("calendar selected", "calendar_id", calendarID)
	return v, nil
}

// Selected is the id of the observed calendar, if any.
func (c *Client) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Task looks a task up in the local inbox replica.
func (c *Client) Task(id string) (model.Task, bool) {
	c.mu.Lock()
	v := c.tasks
	c.mu.Unlock()
	if v == nil {
		return model.Task{}, false
	}
	return v.Find(func(t model.Task) bool { return t.ID == id })
}

// Event looks an event up in the local replica of the selected calendar.
func (c *Client) Event(calendarID, id string) (model.Event, bool) {
	c.mu.Lock()
	v, selected := c.events, c.selected
	c.mu.Unlock()
	if v == nil || selected != calendarID {
		return model.Event{}, false
	}
	return v.Find(func(e model.Event) bool { return e.ID == id })
}

// Close tears down every view of the client. The store is left open.
func (c *Client) Close() {
	c.Drag.Cancel()
	c.Projection.CloseAll()
	c.mu.Lock()
	c.tasks, c.calendars, c.events, c.selected = nil, nil, nil, ""
	c.mu.Unlock()
	c.Logger.Info("session closed")
}
