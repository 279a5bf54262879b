package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultThrottle is how long filesystem changes are coalesced before
// subscribers are re-delivered.
const DefaultThrottle = 100 * time.Millisecond

// watch turns filesystem activity under the base path into hub
// notifications until ctx is cancelled. Local writes notify the hub
// directly; the watch is what makes writes from other processes visible.
func (p *Diskv) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("store: create watcher: %w", err)
	}
	var closeOnce sync.Once
	closeWatcher := func() {
		closeOnce.Do(func() {
			if err := watcher.Close(); err != nil {
				p.log.Warn("watcher close failed", "error", err)
			}
		})
	}

	dirs, err := collectDirs(p.basePath)
	if err != nil {
		closeWatcher()
		return fmt.Errorf("store: enumerate directories: %w", err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			closeWatcher()
			return fmt.Errorf("store: watch %s: %w", dir, err)
		}
	}

	go func() {
		defer closeWatcher()

		watched := make(map[string]struct{}, len(dirs))
		for _, dir := range dirs {
			watched[dir] = struct{}{}
		}

		throttle := newChangeThrottle(p.throttle, p.hub)
		defer throttle.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Overflow or similar: the precise change is unknown, so
				// every subscription is refreshed.
				p.log.Warn("watcher error", "error", err)
				throttle.EnqueueAll()
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}

				if evt.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						absDir := filepath.Clean(evt.Name)
						if _, found := watched[absDir]; !found && !p.isTemp(absDir) {
							if err := watcher.Add(absDir); err != nil {
								p.log.Warn("watch directory failed", "dir", absDir, "error", err)
							} else {
								watched[absDir] = struct{}{}
							}
						}
						// Files may have landed in the new directory before
						// the watch was added.
						throttle.EnqueueAll()
						continue
					}
				}

				collection, ok := p.collectionForPath(evt.Name)
				if !ok {
					continue
				}
				throttle.Enqueue(collection)
			}
		}
	}()

	return nil
}

// collectDirs walks base and returns all directories that should be watched.
func collectDirs(base string) ([]string, error) {
	dirs := []string{base}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() && path != base {
			if d.Name() == tempDir {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

func (p *Diskv) isTemp(path string) bool {
	rel, err := filepath.Rel(p.basePath, path)
	if err != nil {
		return false
	}
	return rel == tempDir || strings.HasPrefix(rel, tempDir+string(os.PathSeparator))
}

// collectionForPath derives the collection of a document file path.
func (p *Diskv) collectionForPath(path string) (string, bool) {
	if p.isTemp(path) || !strings.HasSuffix(path, docExt) {
		return "", false
	}
	rel, err := filepath.Rel(p.basePath, path)
	if err != nil || rel == "." {
		return "", false
	}
	collection, _ := Split(filepath.ToSlash(rel))
	if !IsCollectionPath(collection) {
		return "", false
	}
	return collection, true
}

// changeThrottle coalesces rapid change notifications so subscribers are
// re-delivered once per burst of filesystem activity instead of on every
// single write.
type changeThrottle struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	all     bool
	delay   time.Duration
	hub     *hub
}

func newChangeThrottle(delay time.Duration, h *hub) *changeThrottle {
	return &changeThrottle{
		delay:   delay,
		hub:     h,
		pending: make(map[string]struct{}),
	}
}

func (t *changeThrottle) Enqueue(collection string) {
	t.mu.Lock()
	t.pending[collection] = struct{}{}
	t.arm()
	t.mu.Unlock()
}

func (t *changeThrottle) EnqueueAll() {
	t.mu.Lock()
	t.all = true
	t.arm()
	t.mu.Unlock()
}

func (t *changeThrottle) arm() {
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, t.flush)
	}
}

func (t *changeThrottle) flush() {
	t.mu.Lock()
	pending, all := t.pending, t.all
	t.pending = make(map[string]struct{})
	t.all = false
	t.timer = nil
	t.mu.Unlock()

	if all {
		t.hub.notifyAll()
		return
	}
	for collection := range pending {
		t.hub.notify(collection)
	}
}

func (t *changeThrottle) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}
