// Package projection keeps the latest delivery of each open subscription as
// local state. A View holds exactly one replica per key and replaces it
// wholesale on every delivery.
package projection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"tableflip.dev/taskly/pkg/logging"
	"tableflip.dev/taskly/pkg/notify"
	"tableflip.dev/taskly/pkg/store"
)

// ErrAlreadyOpen is returned when a key already has a live view.
var ErrAlreadyOpen = errors.New("projection: key already open")

// ErrClosed is returned by WaitFor once the view stopped receiving.
var ErrClosed = errors.New("projection: view closed")

// Version counts replacements of a replica. The first delivery is version 1.
type Version uint64

// Projection is the keyed set of live views of one client.
type Projection struct {
	Logger *logging.Logger
	Bus    *notify.Bus

	mu    sync.Mutex
	views map[string]interface{ Close() }
}

func (p *Projection) logger(key string) *logging.Logger {
	return logging.Or(p.Logger).WithComponent("projection").With("key", key)
}

func (p *Projection) register(key string, v interface{ Close() }) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.views == nil {
		p.views = make(map[string]interface{ Close() })
	}
	if _, ok := p.views[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, key)
	}
	p.views[key] = v
	return nil
}

func (p *Projection) unregister(key string, v interface{ Close() }) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.views[key] == v {
		delete(p.views, key)
	}
}

// Keys lists the open keys in order.
func (p *Projection) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.views))
	for k := range p.views {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloseAll tears down every open view.
func (p *Projection) CloseAll() {
	p.mu.Lock()
	views := make([]interface{ Close() }, 0, len(p.views))
	for _, v := range p.views {
		views = append(views, v)
	}
	p.mu.Unlock()
	for _, v := range views {
		v.Close()
	}
}

// View is the local replica of one subscription.
type View[T any] struct {
	key    string
	p      *Projection
	log    *logging.Logger
	cancel context.CancelFunc

	mu      sync.RWMutex
	items   []T
	version Version
	// signal is replaced and then closed on every replacement.
	signal  chan struct{}
	changes chan Version

	done      chan struct{}
	closeOnce sync.Once
}

// Open subscribes and keeps the latest delivery under key until the view is
// closed or ctx is done. Opening a key that is already open fails.
func Open[T any](ctx context.Context, p *Projection, key string, subscribe func(context.Context) (<-chan []T, error)) (*View[T], error) {
	if p == nil {
		return nil, errors.New("projection: nil projection")
	}
	ctx, cancel := context.WithCancel(ctx)
	v := &View[T]{
		key:     key,
		p:       p,
		log:     p.logger(key),
		cancel:  cancel,
		signal:  make(chan struct{}),
		changes: make(chan Version, 1),
		done:    make(chan struct{}),
	}
	if err := p.register(key, v); err != nil {
		cancel()
		return nil, err
	}
	in, err := subscribe(ctx)
	if err != nil {
		cancel()
		p.unregister(key, v)
		return nil, err
	}
	v.log.Info("subscription opened")
	go v.run(in)
	return v, nil
}

// run applies deliveries until the subscription ends. The key is freed
// however it ends, so a view whose ctx was cancelled can be opened again.
func (v *View[T]) run(in <-chan []T) {
	defer close(v.done)
	for items := range in {
		v.replace(items)
	}
	v.cancel()
	v.p.unregister(v.key, v)
	v.log.Info("subscription closed")
}

func (v *View[T]) replace(items []T) {
	v.mu.Lock()
	v.items = items
	v.version++
	version, size, signal := v.version, len(items), v.signal
	v.signal = make(chan struct{})
	v.mu.Unlock()

	store.Offer(v.changes, version)
	v.p.Bus.Publish(notify.NewReplicaUpdatedEvent(v.key, uint64(version), size))
	close(signal)
}

// Key is the key the view was opened under.
func (v *View[T]) Key() string {
	return v.key
}

// Current returns the latest replica and its version. ok is false until the
// first delivery arrived. The slice must not be modified.
func (v *View[T]) Current() ([]T, Version, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.items, v.version, v.version > 0
}

// Changes signals replacements. Signals coalesce; read Current for the data.
func (v *View[T]) Changes() <-chan Version {
	return v.changes
}

// Done is closed once the view stops receiving.
func (v *View[T]) Done() <-chan struct{} {
	return v.done
}

// Find returns the first item of the current replica matching pred.
func (v *View[T]) Find(pred func(T) bool) (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, item := range v.items {
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// WaitFor blocks until a replica satisfies pred and returns it.
func (v *View[T]) WaitFor(ctx context.Context, pred func([]T) bool) ([]T, error) {
	for {
		v.mu.RLock()
		items, ready, signal := v.items, v.version > 0, v.signal
		v.mu.RUnlock()
		if ready && pred(items) {
			return items, nil
		}
		select {
		case <-signal:
		case <-v.done:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close cancels the subscription and frees the key. It is safe to call more
// than once.
func (v *View[T]) Close() {
	v.closeOnce.Do(func() {
		v.cancel()
		v.p.unregister(v.key, v)
		<-v.done
	})
}
