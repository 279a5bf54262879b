package store

import (
	"context"
	"errors"
	"sync"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/logging"
)

var errClosed = errors.New("client closed")

// lister reads the current documents of one collection.
type lister func(ctx context.Context, collection string) ([]Document, error)

// hub fans change notifications out to subscribers. Notifications are
// serialized by mu and always list the current state, so the last delivery
// after a burst of concurrent writes reflects all of them.
type hub struct {
	mu     sync.Mutex
	list   lister
	log    *logging.Logger
	subs   map[uint64]*subscriber
	next   uint64
	closed bool
	done   chan struct{}
}

type subscriber struct {
	query Query
	ch    chan Snapshot
}

func newHub(list lister, log *logging.Logger) *hub {
	return &hub{
		list: list,
		log:  logging.Or(log),
		subs: make(map[uint64]*subscriber),
		done: make(chan struct{}),
	}
}

func (h *hub) subscribe(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if err := checkCollection(q.Collection); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, errs.Store("subscribe", q.Collection, err)
	}

	sub := &subscriber{query: q, ch: make(chan Snapshot, 1)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errs.Store("subscribe", q.Collection, errClosed)
	}
	docs, err := h.list(ctx, q.Collection)
	if err != nil {
		h.mu.Unlock()
		return nil, errs.Store("subscribe", q.Collection, err)
	}
	id := h.next
	h.next++
	h.subs[id] = sub
	sub.offer(newSnapshot(q.Collection, q.apply(docs)))
	h.mu.Unlock()

	h.log.Debug("subscription opened", "query", q.String(), "subscription", id)

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.remove(id)
	}()
	return sub.ch, nil
}

func (h *hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
	h.log.Debug("subscription closed", "query", sub.query.String(), "subscription", id)
}

// notify re-delivers every subscription affected by a change to collection.
func (h *hub) notify(collection string) {
	h.deliver(func(q Query) bool { return q.Affected(collection) })
}

// notifyAll re-delivers every subscription.
func (h *hub) notifyAll() {
	h.deliver(func(Query) bool { return true })
}

func (h *hub) deliver(affected func(Query) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	listed := make(map[string][]Document)
	for id, sub := range h.subs {
		if !affected(sub.query) {
			continue
		}
		docs, ok := listed[sub.query.Collection]
		if !ok {
			var err error
			docs, err = h.list(context.Background(), sub.query.Collection)
			if err != nil {
				h.log.Warn("delivery skipped", "query", sub.query.String(), "subscription", id, "error", err)
				continue
			}
			listed[sub.query.Collection] = docs
		}
		sub.offer(newSnapshot(sub.query.Collection, sub.query.apply(docs)))
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
	close(h.done)
}

func (h *hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// offer is only called with the hub lock held, so it never races close.
func (s *subscriber) offer(snap Snapshot) {
	Offer(s.ch, snap)
}

// Offer sends v on a buffered channel without blocking. When the buffer is
// full the older pending value is dropped in favour of v. It must only be
// used by the single goroutine that sends on ch.
func Offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
