package calendar

import (
	"context"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/store"
)

// Step is a stage of a calendar delete.
type Step string

const (
	StepSubtasks Step = "subtasks"
	StepEvents   Step = "events"
	StepCalendar Step = "calendar"
	StepDone     Step = "done"
)

// Cascade describes a calendar delete that has not finished.
type Cascade struct {
	CalendarID string
	Step       Step
	// Deleted holds every path confirmed deleted so far, across attempts.
	Deleted []string
	// Remaining holds the paths still to delete as of the last attempt.
	Remaining []string
	Err       error
}

type progress struct {
	step      Step
	confirmed map[string]struct{}
	remaining []string
	err       error
}

func (r *Registry) progressFor(id string) *progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cascades == nil {
		r.cascades = make(map[string]*progress)
	}
	p, ok := r.cascades[id]
	if !ok {
		p = &progress{step: StepSubtasks, confirmed: make(map[string]struct{})}
		r.cascades[id] = p
	}
	return p
}

func (r *Registry) finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cascades, id)
}

// Pending lists the calendars whose delete started but did not finish.
func (r *Registry) Pending() []Cascade {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Cascade, 0, len(r.cascades))
	for id, p := range r.cascades {
		out = append(out, Cascade{
			CalendarID: id,
			Step:       p.step,
			Deleted:    p.deleted(),
			Remaining:  append([]string(nil), p.remaining...),
			Err:        p.err,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CalendarID < out[j].CalendarID })
	return out
}

func (p *progress) deleted() []string {
	paths := make([]string, 0, len(p.confirmed))
	for path := range p.confirmed {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Delete removes the calendar with all of its events and their subtasks:
// subtasks first, then events, then the calendar record. Each step is a
// batch of independent deletes. If any of them fails the calendar is left
// partially deleted and the error is a *errs.PartialCascadeError; calling
// Delete again resumes, skipping what was already confirmed.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if r.Store == nil {
		return errNoStore
	}
	if err := requireID(id); err != nil {
		return err
	}
	log := r.logger().WithCalendar(id)
	p := r.progressFor(id)

	fail := func(step Step, remaining []string, err error) error {
		r.mu.Lock()
		p.step = step
		p.remaining = remaining
		p.err = err
		deleted := p.deleted()
		r.mu.Unlock()
		if len(deleted) == 0 {
			log.Warn("calendar delete failed before any write", "step", step, "error", err)
			return errs.Store("cascade "+string(step), store.CalendarPath(id), err)
		}
		log.Warn("calendar delete left partial state", "step", step, "deleted", len(deleted), "remaining", len(remaining), "error", err)
		return &errs.PartialCascadeError{CalendarID: id, Deleted: deleted, Remaining: remaining, Err: err}
	}

	events, err := r.Store.ListAll(ctx, store.EventsPath(id))
	if err != nil {
		return fail(StepSubtasks, nil, err)
	}
	var subtaskPaths []string
	eventPaths := make([]string, 0, len(events.Docs))
	for _, ev := range events.Docs {
		eventPaths = append(eventPaths, ev.Path)
		subs, err := r.Store.ListAll(ctx, store.SubtasksPath(id, ev.ID))
		if err != nil {
			return fail(StepSubtasks, append(eventPaths, store.CalendarPath(id)), err)
		}
		for _, s := range subs.Docs {
			subtaskPaths = append(subtaskPaths, s.Path)
		}
	}
	calendarPath := []string{store.CalendarPath(id)}

	steps := []struct {
		step  Step
		paths []string
		later []string
	}{
		{StepSubtasks, subtaskPaths, append(append([]string(nil), eventPaths...), calendarPath...)},
		{StepEvents, eventPaths, calendarPath},
		{StepCalendar, calendarPath, nil},
	}
	for _, s := range steps {
		r.mu.Lock()
		p.step = s.step
		r.mu.Unlock()
		failed, err := r.deleteBatch(ctx, p, s.paths)
		r.Bus.Publish(notify.NewCascadeProgressEvent(id, string(s.step), len(s.paths)-len(failed), len(failed)+len(s.later)))
		if err != nil {
			return fail(s.step, append(failed, s.later...), err)
		}
		log.Debug("cascade step finished", "step", s.step, "count", len(s.paths))
	}

	r.finish(id)
	log.Info("calendar deleted", "events", len(eventPaths), "subtasks", len(subtaskPaths))
	r.Bus.Publish(notify.NewCalendarChangedEvent(id, notify.ActionDeleted, ""))
	return nil
}

// deleteBatch deletes paths in parallel and returns the ones that failed.
func (r *Registry) deleteBatch(ctx context.Context, p *progress, paths []string) ([]string, error) {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var mu sync.Mutex
	var failed []string
	workers := pool.New().WithContext(ctx).WithMaxGoroutines(concurrency)
	for _, path := range paths {
		r.mu.Lock()
		_, done := p.confirmed[path]
		r.mu.Unlock()
		if done {
			continue
		}
		path := path
		workers.Go(func(ctx context.Context) error {
			if err := r.Store.Delete(ctx, path); err != nil {
				mu.Lock()
				failed = append(failed, path)
				mu.Unlock()
				return err
			}
			r.mu.Lock()
			p.confirmed[path] = struct{}{}
			r.mu.Unlock()
			return nil
		})
	}
	err := workers.Wait()
	sort.Strings(failed)
	return failed, err
}
