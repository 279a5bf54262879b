// Package inbox holds each user's personal list of unscheduled tasks.
package inbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/logging"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/store"
)

var errNoStore = errors.New("inbox: no store configured")

// Inbox is the task list of every user, keyed by user id.
type Inbox struct {
	Store  store.Client
	Logger *logging.Logger
	Bus    *notify.Bus
	// Now stamps CreatedAt. Nil means time.Now.
	Now func() time.Time
}

// NewTask describes a task to create.
type NewTask struct {
	Title       string
	Description string
	Due         time.Time
}

func (in *Inbox) now() time.Time {
	if in.Now != nil {
		return in.Now().UTC()
	}
	return time.Now().UTC()
}

func (in *Inbox) logger(userID string) *logging.Logger {
	return logging.Or(in.Logger).WithComponent("inbox").WithUser(userID)
}

// Create stores a task in userID's inbox and returns its id.
func (in *Inbox) Create(ctx context.Context, userID string, t NewTask) (string, error) {
	if in.Store == nil {
		return "", errNoStore
	}
	if err := requireID("user id", userID); err != nil {
		return "", err
	}
	task := model.Task{
		OwnerID:     userID,
		Title:       strings.TrimSpace(t.Title),
		Description: t.Description,
		CreatedAt:   in.now(),
		Due:         t.Due,
	}
	if err := task.Validate(); err != nil {
		return "", err
	}
	doc, err := in.Store.Put(ctx, store.TodosPath(userID), task.Fields())
	if err != nil {
		return "", err
	}
	in.logger(userID).Debug("task created", "task_id", doc.ID)
	in.Bus.Publish(notify.NewInboxChangedEvent(userID, doc.ID, notify.ActionCreated))
	return doc.ID, nil
}

// Get reads one task from the store.
func (in *Inbox) Get(ctx context.Context, userID, taskID string) (model.Task, error) {
	if in.Store == nil {
		return model.Task{}, errNoStore
	}
	if err := requireID("user id", userID); err != nil {
		return model.Task{}, err
	}
	if err := requireID("task id", taskID); err != nil {
		return model.Task{}, err
	}
	doc, err := in.Store.Get(ctx, store.TodoPath(userID, taskID))
	if err != nil {
		return model.Task{}, err
	}
	return model.TaskFromFields(userID, doc.ID, doc.Fields)
}

// Delete removes a task. Deleting a missing task succeeds.
func (in *Inbox) Delete(ctx context.Context, userID, taskID string) error {
	if in.Store == nil {
		return errNoStore
	}
	if err := requireID("user id", userID); err != nil {
		return err
	}
	if err := requireID("task id", taskID); err != nil {
		return err
	}
	if err := in.Store.Delete(ctx, store.TodoPath(userID, taskID)); err != nil {
		return err
	}
	in.logger(userID).Debug("task deleted", "task_id", taskID)
	in.Bus.Publish(notify.NewInboxChangedEvent(userID, taskID, notify.ActionDeleted))
	return nil
}

// List returns the inbox oldest first.
func (in *Inbox) List(ctx context.Context, userID string) ([]model.Task, error) {
	if in.Store == nil {
		return nil, errNoStore
	}
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	snap, err := in.Store.ListAll(ctx, store.TodosPath(userID))
	if err != nil {
		return nil, err
	}
	return in.decode(userID, snap), nil
}

// Subscribe streams the whole inbox, oldest first, after every change.
func (in *Inbox) Subscribe(ctx context.Context, userID string) (<-chan []model.Task, error) {
	if in.Store == nil {
		return nil, errNoStore
	}
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	snaps, err := in.Store.Subscribe(ctx, store.Query{Collection: store.TodosPath(userID)})
	if err != nil {
		return nil, err
	}
	return store.Relay(ctx, snaps, func(_ context.Context, snap store.Snapshot) ([]model.Task, bool) {
		return in.decode(userID, snap), true
	}), nil
}

func (in *Inbox) decode(userID string, snap store.Snapshot) []model.Task {
	tasks := make([]model.Task, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		t, err := model.TaskFromFields(userID, doc.ID, doc.Fields)
		if err != nil {
			in.logger(userID).Warn("skipping undecodable task", "path", doc.Path, "error", err)
			continue
		}
		tasks = append(tasks, t)
	}
	model.SortTasks(tasks)
	return tasks
}

func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
		return errs.Validation(field, "required")
	}
	return nil
}
