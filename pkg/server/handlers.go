package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tableflip.dev/taskly/pkg/dragmove"
	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/ical"
	"tableflip.dev/taskly/pkg/inbox"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/schedule"
)

// status maps an error kind to an HTTP status.
func status(err error) int {
	switch {
	case errs.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errs.Is(err, errs.ErrLostSource):
		return http.StatusConflict
	case errs.Is(err, errs.ErrPartialCascade):
		return http.StatusInternalServerError
	case errs.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errs.Is(err, errs.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	body := gin.H{
		"success": false,
		"error":   err.Error(),
		"kind":    errs.Kind(err),
	}
	var partial *errs.PartialCascadeError
	if errs.As(err, &partial) {
		body["remaining"] = len(partial.Remaining)
	}
	code := status(err)
	if code >= http.StatusInternalServerError {
		s.log.Warn("request failed", "path", c.FullPath(), "status", code, "error", err)
	}
	c.JSON(code, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "kind": "validation"})
}

// Calendars

type createCalendarRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type shareRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleListCalendars(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		s.fail(c, errs.Validation("email", "query parameter required"))
		return
	}
	cals, err := s.registry.Visible(c.Request.Context(), email)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": cals, "count": len(cals)})
}

func (s *Server) handleCreateCalendar(c *gin.Context) {
	var req createCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := s.registry.Create(c.Request.Context(), req.Owner, req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": id})
}

func (s *Server) handleGetCalendar(c *gin.Context) {
	cal, err := s.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": cal})
}

func (s *Server) handleRenameCalendar(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.registry.Rename(c.Request.Context(), c.Param("id"), req.Name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeleteCalendar(c *gin.Context) {
	if err := s.registry.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleShare(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.registry.Share(c.Request.Context(), c.Param("id"), req.Email); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleUnshare(c *gin.Context) {
	if err := s.registry.Unshare(c.Request.Context(), c.Param("id"), c.Param("email")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleExport(c *gin.Context) {
	ctx := c.Request.Context()
	cal, err := s.registry.Get(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	events, err := s.schedule.List(ctx, cal.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	body, err := ical.Export(cal, events)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// Events

type createEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Kind        string    `json:"kind"`
}

type updateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
}

type moveRequest struct {
	Start time.Time `json:"start"`
}

type subtaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleListEvents(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		events []model.Event
		err    error
	)
	if day := c.Query("day"); day != "" {
		var t time.Time
		t, err = time.Parse(time.DateOnly, day)
		if err != nil {
			s.fail(c, errs.Validation("day", "expected YYYY-MM-DD"))
			return
		}
		events, err = s.schedule.Day(ctx, c.Param("id"), t)
	} else {
		events, err = s.schedule.List(ctx, c.Param("id"))
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": events, "count": len(events)})
}

func (s *Server) handleCreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind, err := model.ParseKind(req.Kind)
	if err != nil {
		s.fail(c, err)
		return
	}
	id, err := s.schedule.Create(c.Request.Context(), schedule.NewEvent{
		CalendarID:  c.Param("id"),
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
		Kind:        kind,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": id})
}

func (s *Server) handleGetEvent(c *gin.Context) {
	e, err := s.schedule.Get(c.Request.Context(), c.Param("id"), c.Param("eid"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": e})
}

func (s *Server) handleUpdateEvent(c *gin.Context) {
	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, err := s.schedule.Update(c.Request.Context(), c.Param("id"), c.Param("eid"), schedule.Patch{
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": e})
}

func (s *Server) handleMoveEvent(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, err := s.schedule.Move(c.Request.Context(), c.Param("id"), c.Param("eid"), req.Start)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": e})
}

func (s *Server) handleDeleteEvent(c *gin.Context) {
	if err := s.schedule.Delete(c.Request.Context(), c.Param("id"), c.Param("eid")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleAddSubtask(c *gin.Context) {
	var req subtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := s.schedule.AddSubtask(c.Request.Context(), c.Param("id"), c.Param("eid"), req.Title, req.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": id})
}

func (s *Server) handleDeleteSubtask(c *gin.Context) {
	if err := s.schedule.DeleteSubtask(c.Request.Context(), c.Param("id"), c.Param("eid"), c.Param("sid")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Inbox

type createTodoRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Due         time.Time `json:"due"`
}

type promoteRequest struct {
	TaskID     string    `json:"taskId"`
	CalendarID string    `json:"calendarId"`
	At         time.Time `json:"at"`
}

func (s *Server) handleListTodos(c *gin.Context) {
	tasks, err := s.inbox.List(c.Request.Context(), c.Param("uid"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": tasks, "count": len(tasks)})
}

func (s *Server) handleCreateTodo(c *gin.Context) {
	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := s.inbox.Create(c.Request.Context(), c.Param("uid"), inbox.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Due:         req.Due,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": id})
}

func (s *Server) handleDeleteTodo(c *gin.Context) {
	if err := s.inbox.Delete(c.Request.Context(), c.Param("uid"), c.Param("tid")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handlePromote runs a complete drag of a task onto a calendar slot.
func (s *Server) handlePromote(c *gin.Context) {
	var req promoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.At.IsZero() {
		s.fail(c, errs.Validation("at", "required"))
		return
	}
	if req.CalendarID == "" {
		s.fail(c, errs.Validation("calendarId", "required"))
		return
	}
	coord := &dragmove.Coordinator{
		Inbox:    s.inbox,
		Schedule: s.schedule,
		UserID:   c.Param("uid"),
		Logger:   s.inbox.Logger,
		Bus:      s.bus,
	}
	if err := coord.Begin(dragmove.Source{Kind: dragmove.SourceTask, ID: req.TaskID}); err != nil {
		s.fail(c, err)
		return
	}
	out, err := coord.Drop(c.Request.Context(), dragmove.Target{
		Kind:       dragmove.TargetSlot,
		CalendarID: req.CalendarID,
		Slot:       req.At,
	})
	if out.TaskRetained {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": out, "warning": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}
