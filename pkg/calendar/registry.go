// Package calendar is the registry of shareable calendars: creation,
// membership and the cascading delete of a calendar with everything in it.
package calendar

import (
	"context"
	"errors"
	"strings"
	"sync"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/logging"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/store"
)

// DefaultConcurrency bounds parallel deletes inside one cascade step.
const DefaultConcurrency = 4

var errNoStore = errors.New("calendar: no store configured")

// Registry creates, shares, lists and deletes calendars.
type Registry struct {
	Store  store.Client
	Logger *logging.Logger
	Bus    *notify.Bus
	// Concurrency bounds parallel deletes within a cascade step. Zero means
	// DefaultConcurrency.
	Concurrency int

	mu       sync.Mutex
	cascades map[string]*progress
}

func (r *Registry) logger() *logging.Logger {
	return logging.Or(r.Logger).WithComponent("calendar")
}

// Create stores a new calendar owned by ownerEmail whose only member is the
// owner, and returns its id.
func (r *Registry) Create(ctx context.Context, ownerEmail, name string) (string, error) {
	if r.Store == nil {
		return "", errNoStore
	}
	owner := model.NormalizeEmail(ownerEmail)
	cal := model.Calendar{
		Name:    strings.TrimSpace(name),
		Owner:   owner,
		Members: []string{owner},
	}
	if err := cal.Validate(); err != nil {
		return "", err
	}
	doc, err := r.Store.Put(ctx, store.CalendarsPath(), cal.Fields())
	if err != nil {
		return "", err
	}
	r.logger().WithCalendar(doc.ID).Info("calendar created", "owner", owner)
	r.Bus.Publish(notify.NewCalendarChangedEvent(doc.ID, notify.ActionCreated, owner))
	return doc.ID, nil
}

// Get reads one calendar.
func (r *Registry) Get(ctx context.Context, id string) (model.Calendar, error) {
	if r.Store == nil {
		return model.Calendar{}, errNoStore
	}
	if err := requireID(id); err != nil {
		return model.Calendar{}, err
	}
	doc, err := r.Store.Get(ctx, store.CalendarPath(id))
	if err != nil {
		return model.Calendar{}, err
	}
	return model.CalendarFromFields(doc.ID, doc.Fields)
}

// Rename changes the display name.
func (r *Registry) Rename(ctx context.Context, id, name string) error {
	if r.Store == nil {
		return errNoStore
	}
	if err := requireID(id); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.Validation("name", "required")
	}
	if err := r.Store.Update(ctx, store.CalendarPath(id), store.Patch{model.FieldName: name}); err != nil {
		return err
	}
	r.logger().WithCalendar(id).Debug("calendar renamed", "name", name)
	r.Bus.Publish(notify.NewCalendarChangedEvent(id, notify.ActionUpdated, ""))
	return nil
}

// Share adds email to the membership set. Sharing with an existing member
// is a no-op. The email is not checked against any user directory.
func (r *Registry) Share(ctx context.Context, id, email string) error {
	if r.Store == nil {
		return errNoStore
	}
	if err := requireID(id); err != nil {
		return err
	}
	email = model.NormalizeEmail(email)
	if email == "" {
		return errs.Validation("email", "required")
	}
	if err := r.Store.Update(ctx, store.CalendarPath(id), store.Patch{model.FieldMembers: store.ArrayUnion(email)}); err != nil {
		return err
	}
	r.logger().WithCalendar(id).Info("calendar shared", "email", email)
	r.Bus.Publish(notify.NewCalendarChangedEvent(id, notify.ActionShared, email))
	return nil
}

// Unshare removes email from the membership set. The owner cannot be
// removed.
func (r *Registry) Unshare(ctx context.Context, id, email string) error {
	if r.Store == nil {
		return errNoStore
	}
	cal, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	email = model.NormalizeEmail(email)
	if email == "" {
		return errs.Validation("email", "required")
	}
	if email == model.NormalizeEmail(cal.Owner) {
		return errs.Validation("email", "the owner cannot be removed from the calendar")
	}
	if err := r.Store.Update(ctx, store.CalendarPath(id), store.Patch{model.FieldMembers: store.ArrayRemove(email)}); err != nil {
		return err
	}
	r.logger().WithCalendar(id).Info("calendar unshared", "email", email)
	r.Bus.Publish(notify.NewCalendarChangedEvent(id, notify.ActionUnshared, email))
	return nil
}

func (r *Registry) visibleQuery(email string) store.Query {
	return store.Query{
		Collection: store.CalendarsPath(),
		Filters:    []store.Filter{store.Where(model.FieldMembers, store.OpArrayContains, model.NormalizeEmail(email))},
	}
}

// Visible returns the calendars email is a member of, once.
func (r *Registry) Visible(ctx context.Context, email string) ([]model.Calendar, error) {
	if r.Store == nil {
		return nil, errNoStore
	}
	q := r.visibleQuery(email)
	snap, err := r.Store.ListAll(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	var docs []store.Document
	for _, d := range snap.Docs {
		if q.Match(d.Fields) {
			docs = append(docs, d)
		}
	}
	return r.decode(docs), nil
}

// ListVisible streams the calendars email is a member of. Each delivery is
// the complete set. The stream ends when ctx is done.
func (r *Registry) ListVisible(ctx context.Context, email string) (<-chan []model.Calendar, error) {
	if r.Store == nil {
		return nil, errNoStore
	}
	if model.NormalizeEmail(email) == "" {
		return nil, errs.Validation("email", "required")
	}
	snaps, err := r.Store.Subscribe(ctx, r.visibleQuery(email))
	if err != nil {
		return nil, err
	}
	return store.Relay(ctx, snaps, func(_ context.Context, snap store.Snapshot) ([]model.Calendar, bool) {
		return r.decode(snap.Docs), true
	}), nil
}

func (r *Registry) decode(docs []store.Document) []model.Calendar {
	cals := make([]model.Calendar, 0, len(docs))
	for _, d := range docs {
		cal, err := model.CalendarFromFields(d.ID, d.Fields)
		if err != nil {
			r.logger().Warn("skipping undecodable calendar", "path", d.Path, "error", err)
			continue
		}
		cals = append(cals, cal)
	}
	model.SortCalendars(cals)
	return cals
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
		return errs.Validation("calendar id", "required")
	}
	return nil
}
