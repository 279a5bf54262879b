package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mitchellh/go-homedir"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/logging"
)

// DefaultPollInterval is how often a SQLite store checks whether another
// connection committed.
const DefaultPollInterval = 250 * time.Millisecond

// SQLite keeps every document as a row holding its JSON fields.
type SQLite struct {
	db   *sql.DB
	log  *logging.Logger
	hub  *hub
	poll time.Duration

	pollOnce   sync.Once
	pollCancel context.CancelFunc
}

var _ Client = (*SQLite)(nil)

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string, opts Options) (*SQLite, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("store: expand %s: %w", path, err)
	}
	if dir := filepath.Dir(expanded); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: ensure database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", sqliteDSN(expanded))
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	s := &SQLite{db: db, log: logging.Or(opts.Logger), poll: opts.Throttle}
	if s.poll <= 0 {
		s.poll = DefaultPollInterval
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate sqlite: %w", err)
	}
	s.hub = newHub(s.list, s.log)
	return s, nil
}

// sqliteDSN starts every transaction with BEGIN IMMEDIATE so read-modify-write
// patches from separate connections wait on the busy timeout instead of
// failing when the read lock cannot be upgraded.
func sqliteDSN(path string) string {
	return path + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
}

func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			path TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			fields TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) guard(ctx context.Context, op, path string) error {
	if err := checkContext(ctx); err != nil {
		return errs.Store(op, path, err)
	}
	if s.hub.isClosed() {
		return errs.Store(op, path, errClosed)
	}
	return nil
}

func (s *SQLite) Put(ctx context.Context, collection string, fields map[string]any) (Document, error) {
	if err := checkCollection(collection); err != nil {
		return Document{}, err
	}
	if err := s.guard(ctx, "put", collection); err != nil {
		return Document{}, err
	}
	id := uuid.NewString()
	docPath := Join(collection, id)
	stored, err := s.upsert(ctx, docPath, fields)
	if err != nil {
		return Document{}, errs.Store("put", docPath, err)
	}
	return Document{ID: id, Path: docPath, Fields: stored}, nil
}

func (s *SQLite) Set(ctx context.Context, docPath string, fields map[string]any) error {
	if err := checkDocument(docPath); err != nil {
		return err
	}
	if err := s.guard(ctx, "set", docPath); err != nil {
		return err
	}
	if _, err := s.upsert(ctx, docPath, fields); err != nil {
		return errs.Store("set", docPath, err)
	}
	return nil
}

func (s *SQLite) upsert(ctx context.Context, docPath string, fields map[string]any) (map[string]any, error) {
	stored, err := normalize(fields)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	collection, id := Split(docPath)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (path, collection, id, fields, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at
	`, docPath, collection, id, string(data), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.hub.notify(collection)
	return stored, nil
}

func (s *SQLite) Get(ctx context.Context, docPath string) (Document, error) {
	if err := checkDocument(docPath); err != nil {
		return Document{}, err
	}
	if err := s.guard(ctx, "get", docPath); err != nil {
		return Document{}, err
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = ?`, docPath).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, errs.NotFound("get", docPath)
	}
	if err != nil {
		return Document{}, errs.Store("get", docPath, err)
	}
	fields, err := decodeFields([]byte(raw))
	if err != nil {
		return Document{}, errs.Store("get", docPath, err)
	}
	_, id := Split(docPath)
	return Document{ID: id, Path: docPath, Fields: fields}, nil
}

func (s *SQLite) Update(ctx context.Context, docPath string, patch Patch) error {
	if err := checkDocument(docPath); err != nil {
		return err
	}
	if err := s.guard(ctx, "update", docPath); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Store("update", docPath, err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = ?`, docPath).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound("update", docPath)
	}
	if err != nil {
		return errs.Store("update", docPath, err)
	}
	current, err := decodeFields([]byte(raw))
	if err != nil {
		return errs.Store("update", docPath, err)
	}
	merged, err := patch.Apply(current)
	if err != nil {
		return errs.Store("update", docPath, err)
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return errs.Store("update", docPath, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET fields = ?, updated_at = ? WHERE path = ?`,
		string(data), time.Now().UTC(), docPath); err != nil {
		return errs.Store("update", docPath, err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Store("update", docPath, err)
	}

	collection, _ := Split(docPath)
	s.hub.notify(collection)
	return nil
}

func (s *SQLite) Delete(ctx context.Context, docPath string) error {
	if err := checkDocument(docPath); err != nil {
		return err
	}
	if err := s.guard(ctx, "delete", docPath); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, docPath)
	if err != nil {
		return errs.Store("delete", docPath, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		collection, _ := Split(docPath)
		s.hub.notify(collection)
	}
	return nil
}

func (s *SQLite) ListAll(ctx context.Context, collection string) (Snapshot, error) {
	if err := checkCollection(collection); err != nil {
		return Snapshot{}, err
	}
	if err := s.guard(ctx, "list", collection); err != nil {
		return Snapshot{}, err
	}
	docs, err := s.list(ctx, collection)
	if err != nil {
		return Snapshot{}, errs.Store("list", collection, err)
	}
	return newSnapshot(collection, docs), nil
}

func (s *SQLite) list(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, fields FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id, docPath, raw string
		if err := rows.Scan(&id, &docPath, &raw); err != nil {
			return nil, err
		}
		fields, err := decodeFields([]byte(raw))
		if err != nil {
			s.log.Warn("skipping undecodable document", "path", docPath, "error", err)
			continue
		}
		docs = append(docs, Document{ID: id, Path: docPath, Fields: fields})
	}
	return docs, rows.Err()
}

func (s *SQLite) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if err := s.guard(ctx, "subscribe", q.Collection); err != nil {
		return nil, err
	}
	s.pollOnce.Do(func() {
		pollCtx, cancel := context.WithCancel(context.Background())
		s.pollCancel = cancel
		go s.watchCommits(pollCtx)
	})
	return s.hub.subscribe(ctx, q)
}

// watchCommits polls PRAGMA data_version on a dedicated connection. The
// value changes whenever another connection commits, which is how writes
// from other processes reach this process's subscribers.
func (s *SQLite) watchCommits(ctx context.Context) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		s.log.Warn("commit watch unavailable; only local writes will be delivered", "error", err)
		return
	}
	defer conn.Close()

	var last int64
	if err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&last); err != nil {
		s.log.Warn("commit watch unavailable; only local writes will be delivered", "error", err)
		return
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var current int64
			if err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&current); err != nil {
				if ctx.Err() == nil {
					s.log.Warn("data_version poll failed", "error", err)
				}
				continue
			}
			if current != last {
				last = current
				s.hub.notifyAll()
			}
		}
	}
}

// Close ends every subscription and closes the database.
func (s *SQLite) Close() error {
	s.pollOnce.Do(func() {})
	if s.pollCancel != nil {
		s.pollCancel()
	}
	s.hub.close()
	return s.db.Close()
}
