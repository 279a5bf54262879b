package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"tableflip.dev/taskly/pkg/calendar"
	"tableflip.dev/taskly/pkg/config"
	"tableflip.dev/taskly/pkg/inbox"
	"tableflip.dev/taskly/pkg/logging"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/schedule"
	"tableflip.dev/taskly/pkg/session"
	"tableflip.dev/taskly/pkg/store"
)

// env is what one command invocation runs against.
type env struct {
	cfg   *config.Config
	log   *logging.Logger
	store store.Client
	bus   *notify.Bus
}

func loadConfig() (*config.Config, error) {
	v := config.New()
	if ido.ConfigPath != "" {
		v.AddConfigPath(ido.ConfigPath)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if ido.UserID != "" {
		cfg.Identity.UserID = ido.UserID
	}
	if ido.Email != "" {
		cfg.Identity.Email = ido.Email
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.StoreOptions(log))
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	bus := notify.NewBus(log)
	bus.SubscribeAll(func(e notify.Event) {
		log.Debug("notification", "type", e.EventType())
	})
	return &env{cfg: cfg, log: log, store: st, bus: bus}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Warn("closing store", "error", err)
	}
	_ = e.log.Close()
}

func (e *env) user() (model.User, error) {
	u, err := e.cfg.User()
	if err != nil {
		return model.User{}, fmt.Errorf("%w (set --user-id and --email, or identity in .taskly.yaml)", err)
	}
	return u, nil
}

func (e *env) registry() *calendar.Registry {
	return &calendar.Registry{Store: e.store, Logger: e.log, Bus: e.bus, Concurrency: e.cfg.Cascade.Concurrency}
}

func (e *env) schedule() *schedule.Store {
	return &schedule.Store{Store: e.store, Logger: e.log, Bus: e.bus}
}

func (e *env) inbox() *inbox.Inbox {
	return &inbox.Inbox{Store: e.store, Logger: e.log, Bus: e.bus}
}

func (e *env) client() (*session.Client, error) {
	u, err := e.user()
	if err != nil {
		return nil, err
	}
	return session.New(u, e.store, session.Options{Logger: e.log, Bus: e.bus, Concurrency: e.cfg.Cascade.Concurrency})
}

// interruptible is ctx cancelled on ctrl-c.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}
