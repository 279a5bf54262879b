// Package config loads taskly settings from .taskly.yaml, TASKLY_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"tableflip.dev/taskly/pkg/logging"
	"tableflip.dev/taskly/pkg/model"
	"tableflip.dev/taskly/pkg/store"
)

// Config is the full set of settings.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	Identity IdentityConfig `mapstructure:"identity"`
	Cascade  CascadeConfig  `mapstructure:"cascade"`
	Server   ServerConfig   `mapstructure:"server"`
}

type StoreConfig struct {
	// Backend is one of diskv, sqlite or memory.
	Backend string `mapstructure:"backend"`
	// Path is the diskv directory or the sqlite file.
	Path string `mapstructure:"path"`
	// Throttle coalesces filesystem change bursts (diskv) or sets the
	// commit poll interval (sqlite).
	Throttle time.Duration `mapstructure:"throttle"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Dir is where taskly.log is written. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
}

// IdentityConfig is the user handed to taskly by the identity provider.
type IdentityConfig struct {
	UserID      string `mapstructure:"user_id"`
	Email       string `mapstructure:"email"`
	DisplayName string `mapstructure:"display_name"`
}

type CascadeConfig struct {
	// Concurrency bounds parallel deletes within one cascade step.
	Concurrency int `mapstructure:"concurrency"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// Default returns the built in settings.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:  store.BackendDiskv,
			Path:     "~/.taskly.db",
			Throttle: store.DefaultThrottle,
		},
		Log: LogConfig{
			Level: logging.LevelWarn,
		},
		Cascade: CascadeConfig{Concurrency: 4},
		Server:  ServerConfig{Listen: "127.0.0.1:8080"},
	}
}

// SetDefaults registers the defaults with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.throttle", d.Store.Throttle)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("identity.user_id", "")
	v.SetDefault("identity.email", "")
	v.SetDefault("identity.display_name", "")
	v.SetDefault("cascade.concurrency", d.Cascade.Concurrency)
	v.SetDefault("server.listen", d.Server.Listen)
}

// New returns a viper instance that looks for .taskly.yaml in
// $TASKLY_CONFIG_PATH and the working directory and reads TASKLY_* env vars.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigName(".taskly") // .yaml is implicit
	v.SetEnvPrefix("TASKLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if override := os.Getenv("TASKLY_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	return v
}

// Load reads the configuration file (a missing file is fine) and decodes
// v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = New()
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.expand(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expand() error {
	var err error
	if c.Store.Path, err = homedir.Expand(c.Store.Path); err != nil {
		return fmt.Errorf("config: expand store.path: %w", err)
	}
	if c.Log.Dir, err = homedir.Expand(c.Log.Dir); err != nil {
		return fmt.Errorf("config: expand log.dir: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	backend := strings.ToLower(strings.TrimSpace(c.Store.Backend))
	valid := false
	for _, b := range store.Backends() {
		if backend == b {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("config: store.backend %q must be one of %s", c.Store.Backend, strings.Join(store.Backends(), ", "))
	}
	if backend != store.BackendMemory && strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("config: store.path required")
	}
	if c.Store.Throttle < 0 {
		return errors.New("config: store.throttle must not be negative")
	}
	if c.Cascade.Concurrency <= 0 {
		return fmt.Errorf("config: cascade.concurrency must be positive, got %d", c.Cascade.Concurrency)
	}
	level := strings.ToUpper(strings.TrimSpace(c.Log.Level))
	validLevel := level == ""
	for _, l := range logging.ValidLevels() {
		if level == l {
			validLevel = true
		}
	}
	if !validLevel {
		return fmt.Errorf("config: log.level %q must be one of %s", c.Log.Level, strings.Join(logging.ValidLevels(), ", "))
	}
	return nil
}

// User returns the configured identity.
func (c *Config) User() (model.User, error) {
	u := model.User{
		ID:          strings.TrimSpace(c.Identity.UserID),
		Email:       model.NormalizeEmail(c.Identity.Email),
		DisplayName: c.Identity.DisplayName,
	}
	if err := u.Validate(); err != nil {
		return model.User{}, fmt.Errorf("config: identity: %w", err)
	}
	return u, nil
}

// StoreOptions converts the store settings for store.Open.
func (c *Config) StoreOptions(log *logging.Logger) store.Options {
	return store.Options{
		Backend:  c.Store.Backend,
		Path:     c.Store.Path,
		Throttle: c.Store.Throttle,
		Logger:   log,
	}
}

// Logger builds the logger described by the log settings.
func (c *Config) Logger() (*logging.Logger, error) {
	return logging.NewLogger(c.Log.Dir, c.Log.Level)
}
