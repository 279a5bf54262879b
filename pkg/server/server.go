// Package server exposes calendars, events and inboxes over HTTP/JSON, with
// server-sent events for live calendar views and the notification feed.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tableflip.dev/taskly/pkg/calendar"
	"tableflip.dev/taskly/pkg/inbox"
	"tableflip.dev/taskly/pkg/logging"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/schedule"
	"tableflip.dev/taskly/pkg/store"
)

// Server is the taskly HTTP server.
type Server struct {
	registry *calendar.Registry
	schedule *schedule.Store
	inbox    *inbox.Inbox
	log      *logging.Logger
	bus      *notify.Bus
	router   *gin.Engine
}

// Options configure New.
type Options struct {
	Logger      *logging.Logger
	Bus         *notify.Bus
	Concurrency int
}

// New builds a server over st.
func New(st store.Client, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	log := logging.Or(opts.Logger).WithComponent("server")
	bus := opts.Bus
	if bus == nil {
		bus = notify.NewBus(log)
	}
	s := &Server{
		registry: &calendar.Registry{Store: st, Logger: opts.Logger, Bus: bus, Concurrency: opts.Concurrency},
		schedule: &schedule.Store{Store: st, Logger: opts.Logger, Bus: bus},
		inbox:    &inbox.Inbox{Store: st, Logger: opts.Logger, Bus: bus},
		log:      log,
		bus:      bus,
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests)
	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/activity", s.handleActivity)

		api.GET("/calendars", s.handleListCalendars)
		api.POST("/calendars", s.handleCreateCalendar)
		api.GET("/calendars/:id", s.handleGetCalendar)
		api.PATCH("/calendars/:id", s.handleRenameCalendar)
		api.DELETE("/calendars/:id", s.handleDeleteCalendar)
		api.POST("/calendars/:id/share", s.handleShare)
		api.DELETE("/calendars/:id/share/:email", s.handleUnshare)
		api.GET("/calendars/:id/ics", s.handleExport)

		api.GET("/calendars/:id/events", s.handleListEvents)
		api.POST("/calendars/:id/events", s.handleCreateEvent)
		api.GET("/calendars/:id/events/stream", s.handleEventStream)
		api.GET("/calendars/:id/events/:eid", s.handleGetEvent)
		api.PATCH("/calendars/:id/events/:eid", s.handleUpdateEvent)
		api.DELETE("/calendars/:id/events/:eid", s.handleDeleteEvent)
		api.POST("/calendars/:id/events/:eid/move", s.handleMoveEvent)
		api.POST("/calendars/:id/events/:eid/subtasks", s.handleAddSubtask)
		api.DELETE("/calendars/:id/events/:eid/subtasks/:sid", s.handleDeleteSubtask)

		api.GET("/users/:uid/todos", s.handleListTodos)
		api.POST("/users/:uid/todos", s.handleCreateTodo)
		api.DELETE("/users/:uid/todos/:tid", s.handleDeleteTodo)
		api.POST("/users/:uid/promote", s.handlePromote)
	}
	s.router = router
	return s
}

// Handler returns the routes for use with net/http.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
