package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/peterbourgon/diskv/v3"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/logging"
)

const (
	docExt  = ".json"
	tempDir = ".tmp"
)

// Diskv keeps one JSON file per document under a base directory that mirrors
// the document paths. Other processes sharing the directory are picked up by
// a filesystem watch once the first subscription opens.
type Diskv struct {
	d        *diskv.Diskv
	basePath string
	throttle time.Duration
	log      *logging.Logger

	// mu serializes read-modify-write cycles within this process. Writers in
	// other processes are last-writer-wins at document granularity.
	mu  sync.Mutex
	hub *hub

	watchOnce   sync.Once
	watchErr    error
	watchCancel context.CancelFunc
}

var _ Client = (*Diskv)(nil)

// Load opens a diskv backed store at opts.Path.
func Load(opts Options) (*Diskv, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("store: path required")
	}
	basePath, err := homedir.Expand(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("store: expand %s: %w", opts.Path, err)
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure base path: %w", err)
	}
	throttle := opts.Throttle
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	p := &Diskv{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			// Writes land through a rename so readers in other processes
			// never see a torn document.
			TempDir: filepath.Join(basePath, tempDir),
			// No read cache: files written by other processes must be seen.
			CacheSizeMax: 0,
		}),
		basePath: basePath,
		throttle: throttle,
		log:      logging.Or(opts.Logger),
	}
	p.hub = newHub(p.list, p.log)
	return p, nil
}

// BasePath is the directory holding the documents.
func (p *Diskv) BasePath() string {
	return p.basePath
}

func (p *Diskv) guard(ctx context.Context, op, path string) error {
	if err := checkContext(ctx); err != nil {
		return errs.Store(op, path, err)
	}
	if p.hub.isClosed() {
		return errs.Store(op, path, errClosed)
	}
	return nil
}

func (p *Diskv) Put(ctx context.Context, collection string, fields map[string]any) (Document, error) {
	if err := checkCollection(collection); err != nil {
		return Document{}, err
	}
	if err := p.guard(ctx, "put", collection); err != nil {
		return Document{}, err
	}
	id := uuid.NewString()
	docPath := Join(collection, id)
	stored, err := p.write(docPath, fields)
	if err != nil {
		return Document{}, errs.Store("put", docPath, err)
	}
	return Document{ID: id, Path: docPath, Fields: stored}, nil
}

func (p *Diskv) Set(ctx context.Context, docPath string, fields map[string]any) error {
	if err := checkDocument(docPath); err != nil {
		return err
	}
	if err := p.guard(ctx, "set", docPath); err != nil {
		return err
	}
	if _, err := p.write(docPath, fields); err != nil {
		return errs.Store("set", docPath, err)
	}
	return nil
}

func (p *Diskv) write(docPath string, fields map[string]any) (map[string]any, error) {
	stored, err := normalize(fields)
	if err != nil {
		return nil, err
	}
	data, err := encodeFields(stored)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	err = p.d.Write(docPath, data)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	collection, _ := Split(docPath)
	p.hub.notify(collection)
	return stored, nil
}

func (p *Diskv) read(docPath string) (map[string]any, error) {
	data, err := p.d.Read(docPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return decodeFields(data)
}

func (p *Diskv) Get(ctx context.Context, docPath string) (Document, error) {
	if err := checkDocument(docPath); err != nil {
		return Document{}, err
	}
	if err := p.guard(ctx, "get", docPath); err != nil {
		return Document{}, err
	}
	fields, err := p.read(docPath)
	if err != nil {
		return Document{}, errs.Store("get", docPath, err)
	}
	_, id := Split(docPath)
	return Document{ID: id, Path: docPath, Fields: fields}, nil
}

func (p *Diskv) Update(ctx context.Context, docPath string, patch Patch) error {
	if err := checkDocument(docPath); err != nil {
		return err
	}
	if err := p.guard(ctx, "update", docPath); err != nil {
		return err
	}
	p.mu.Lock()
	current, err := p.read(docPath)
	if err != nil {
		p.mu.Unlock()
		return errs.Store("update", docPath, err)
	}
	merged, err := patch.Apply(current)
	if err != nil {
		p.mu.Unlock()
		return errs.Store("update", docPath, err)
	}
	data, err := encodeFields(merged)
	if err == nil {
		err = p.d.Write(docPath, data)
	}
	p.mu.Unlock()
	if err != nil {
		return errs.Store("update", docPath, err)
	}
	collection, _ := Split(docPath)
	p.hub.notify(collection)
	return nil
}

func (p *Diskv) Delete(ctx context.Context, docPath string) error {
	if err := checkDocument(docPath); err != nil {
		return err
	}
	if err := p.guard(ctx, "delete", docPath); err != nil {
		return err
	}
	p.mu.Lock()
	err := p.d.Erase(docPath)
	p.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errs.Store("delete", docPath, err)
	}
	collection, _ := Split(docPath)
	p.hub.notify(collection)
	return nil
}

func (p *Diskv) ListAll(ctx context.Context, collection string) (Snapshot, error) {
	if err := checkCollection(collection); err != nil {
		return Snapshot{}, err
	}
	if err := p.guard(ctx, "list", collection); err != nil {
		return Snapshot{}, err
	}
	docs, err := p.list(ctx, collection)
	if err != nil {
		return Snapshot{}, errs.Store("list", collection, err)
	}
	return newSnapshot(collection, docs), nil
}

// list reads the documents directly inside the collection directory.
// Subcollection directories are skipped.
func (p *Diskv) list(_ context.Context, collection string) ([]Document, error) {
	dir := filepath.Join(p.basePath, filepath.FromSlash(collection))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Document{}, nil
		}
		return nil, err
	}
	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, docExt) {
			continue
		}
		id := strings.TrimSuffix(name, docExt)
		docPath := Join(collection, id)
		fields, err := p.read(docPath)
		if err != nil {
			// Deleted between ReadDir and Read, or a torn write from
			// another process. The next notification lists it again.
			p.log.Debug("skipping unreadable document", "path", docPath, "error", err)
			continue
		}
		docs = append(docs, Document{ID: id, Path: docPath, Fields: fields})
	}
	sortDocs(docs)
	return docs, nil
}

func (p *Diskv) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if err := p.guard(ctx, "subscribe", q.Collection); err != nil {
		return nil, err
	}
	p.watchOnce.Do(func() {
		watchCtx, cancel := context.WithCancel(context.Background())
		p.watchCancel = cancel
		p.watchErr = p.watch(watchCtx)
		if p.watchErr != nil {
			p.log.Warn("filesystem watch unavailable; only local writes will be delivered", "error", p.watchErr)
		}
	})
	return p.hub.subscribe(ctx, q)
}

// Close stops the filesystem watch and ends every subscription.
func (p *Diskv) Close() error {
	p.watchOnce.Do(func() {})
	if p.watchCancel != nil {
		p.watchCancel()
	}
	p.hub.close()
	return nil
}

func encodeFields(fields map[string]any) ([]byte, error) {
	return json.Marshal(fields)
}

// keyToPathTransform maps calendars/c1/events/e1 to calendars/c1/events/e1.json
// so a document file never collides with its subcollection directory.
func keyToPathTransform(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1] + docExt,
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	parts := append(append([]string{}, pathKey.Path...), strings.TrimSuffix(pathKey.FileName, docExt))
	return strings.Join(parts, "/")
}
