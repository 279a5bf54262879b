// Package promote drags an inbox task onto a calendar slot from the command
// line, the same way an interactive client would.
package promote

import (
	"context"
	"errors"
	"time"

	"tableflip.dev/taskly/pkg/dragmove"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/session"
)

// DefaultSettle bounds the wait for the first inbox snapshot.
const DefaultSettle = 5 * time.Second

// Promote configures `taskly promote`.
type Promote struct {
	TaskID     string
	CalendarID string
	At         time.Time
	Client     *session.Client
	Printer    *printers.PrettyPrint
	// Settle defaults to DefaultSettle.
	Settle time.Duration
}

type result struct {
	dragmove.Outcome
	Warning string `json:"warning,omitempty"`
}

func (p *Promote) Do(ctx context.Context) error {
	if p.Client == nil {
		return errors.New("promote: no client")
	}
	settle := p.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}

	// The coordinator resolves the task from the local replica, so wait
	// until the inbox has been delivered once.
	tasks, err := p.Client.OpenInbox(ctx)
	if err != nil {
		return err
	}
	wait, cancel := context.WithTimeout(ctx, settle)
	defer cancel()
	if _, err := tasks.WaitFor(wait, func([]model.Task) bool { return true }); err != nil {
		return err
	}

	if err := p.Client.Drag.Begin(dragmove.Source{Kind: dragmove.SourceTask, ID: p.TaskID}); err != nil {
		return err
	}
	out, err := p.Client.Drag.Drop(ctx, dragmove.Target{
		Kind:       dragmove.TargetSlot,
		CalendarID: p.CalendarID,
		Slot:       p.At,
	})
	if err != nil && !out.TaskRetained {
		return err
	}
	res := result{Outcome: out}
	if out.TaskRetained {
		res.Warning = err.Error()
	}

	pp := printer(p.Printer)
	return pp.Emit(res, func() {
		pp.Note("promoted %s to event %s on %s", p.TaskID, out.EventID, out.CalendarID)
		if ev, gerr := p.Client.Schedule.Get(ctx, out.CalendarID, out.EventID); gerr == nil {
			pp.Events(ev)
		}
		if out.TaskRetained {
			pp.Warn("the task is still in the inbox: %v", err)
		}
	})
}

func printer(pp *printers.PrettyPrint) *printers.PrettyPrint {
	if pp == nil {
		return &printers.PrettyPrint{}
	}
	return pp
}
