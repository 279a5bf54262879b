package store

import (
	"fmt"
	"strings"
	"time"

	"tableflip.dev/taskly/pkg/logging"
)

// Backend names accepted by Open.
const (
	BackendDiskv  = "diskv"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Backends lists the accepted backend names.
func Backends() []string {
	return []string{BackendDiskv, BackendSQLite, BackendMemory}
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Path is the diskv base directory or the SQLite database file.
	Path string
	// Throttle is the diskv watch coalescing delay or the SQLite commit
	// poll interval.
	Throttle time.Duration
	Logger   *logging.Logger
}

// Open returns the Client for opts.Backend. An empty backend is diskv.
func Open(opts Options) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendDiskv:
		return Load(opts)
	case BackendSQLite:
		return OpenSQLite(opts.Path, opts)
	case BackendMemory:
		return NewMemoryWithLogger(opts.Logger), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}
