package server

import (
	"io"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"tableflip.dev/taskly/pkg/notify"
)

// relayBuffer is how many notifications a slow stream client may fall behind
// before newer ones are dropped for it.
const relayBuffer = 64

// activity is the envelope sent on the notification feed.
type activity struct {
	Type string       `json:"type"`
	At   time.Time    `json:"at"`
	Data notify.Event `json:"data"`
}

// relay forwards the bus notifications keep accepts until stop is called.
func (s *Server) relay(keep func(notify.Event) bool) (<-chan notify.Event, func()) {
	ch := make(chan notify.Event, relayBuffer)
	id := s.bus.SubscribeAll(func(e notify.Event) {
		if !keep(e) {
			return
		}
		select {
		case ch <- e:
		default:
			s.log.Debug("stream dropped notification", "event", e.EventType())
		}
	})
	return ch, func() { s.bus.Unsubscribe(id) }
}

// handleEventStream sends the full event list of a calendar as a "snapshot"
// event on every change. Registry changes to the calendar go out as
// "calendar" events and drops onto it as "outcome" events. The stream ends
// when the calendar is deleted or the client goes away.
func (s *Server) handleEventStream(c *gin.Context) {
	ctx := c.Request.Context()
	calendarID := c.Param("id")
	notes, stop := s.relay(func(e notify.Event) bool {
		switch e := e.(type) {
		case notify.CalendarChangedEvent:
			return e.CalendarID == calendarID
		case notify.DragOutcomeEvent:
			return e.CalendarID == calendarID
		}
		return false
	})
	defer stop()
	ch, err := s.schedule.Subscribe(ctx, calendarID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("stream opened", "calendar_id", calendarID)
	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case events, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", events)
			return true
		case e := <-notes:
			switch e := e.(type) {
			case notify.CalendarChangedEvent:
				c.SSEvent("calendar", e)
				return e.Action != notify.ActionDeleted
			case notify.DragOutcomeEvent:
				c.SSEvent("outcome", e)
			}
			return true
		case <-ctx.Done():
			return false
		}
	})
	s.log.Info("stream closed", "calendar_id", calendarID)
}

// handleActivity streams every bus notification, or only those whose type is
// listed in the type query parameter, until the client goes away.
func (s *Server) handleActivity(c *gin.Context) {
	ctx := c.Request.Context()
	types := c.QueryArray("type")
	notes, stop := s.relay(func(e notify.Event) bool {
		return len(types) == 0 || slices.Contains(types, e.EventType())
	})
	defer stop()

	s.log.Info("activity feed opened", "types", types)
	c.Header("Cache-Control", "no-cache")
	c.SSEvent("ready", gin.H{"types": types})
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case e := <-notes:
			c.SSEvent(e.EventType(), activity{Type: e.EventType(), At: e.Timestamp(), Data: e})
			return true
		case <-ctx.Done():
			return false
		}
	})
	s.log.Info("activity feed closed")
}
