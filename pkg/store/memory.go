package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/logging"
)

// Method names a Client operation for failure injection.
type Method string

const (
	MethodPut       Method = "put"
	MethodSet       Method = "set"
	MethodGet       Method = "get"
	MethodUpdate    Method = "update"
	MethodDelete    Method = "delete"
	MethodList      Method = "list"
	MethodSubscribe Method = "subscribe"
)

// ErrInjected is the failure used by FailNext when none is given.
var ErrInjected = errors.New("injected failure")

type failure struct {
	method Method
	prefix string
	exact  bool
	err    error
}

func (f failure) matches(method Method, p string) bool {
	if f.method != method {
		return false
	}
	if f.exact {
		return p == f.prefix
	}
	return strings.HasPrefix(p, f.prefix)
}

// Memory is an in-process backend. Every Client handed out by Memory shares
// the same documents, which makes it the stand-in for the remote store in
// tests and in multi-client simulations.
type Memory struct {
	mu          sync.RWMutex
	docs        map[string]map[string]map[string]any
	failures    []failure
	unavailable bool
	hub         *hub
	newID       func() string
}

var _ Client = (*Memory)(nil)

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return NewMemoryWithLogger(nil)
}

func NewMemoryWithLogger(log *logging.Logger) *Memory {
	m := &Memory{
		docs:  make(map[string]map[string]map[string]any),
		newID: uuid.NewString,
	}
	m.hub = newHub(m.list, log)
	return m
}

// FailNext makes the next call of method on a path starting with prefix
// fail with err. Failures queue up and are consumed in order.
func (m *Memory) FailNext(method Method, prefix string, err error) {
	if err == nil {
		err = ErrInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failure{method: method, prefix: prefix, err: err})
}

// FailPath is FailNext for exactly one path.
func (m *Memory) FailPath(method Method, path string, err error) {
	if err == nil {
		err = ErrInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failure{method: method, prefix: path, exact: true, err: err})
}

// SetUnavailable makes every call fail until cleared.
func (m *Memory) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = down
}

func (m *Memory) injected(method Method, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return errs.Store(string(method), p, errs.ErrStoreUnavailable)
	}
	for i, f := range m.failures {
		if f.matches(method, p) {
			m.failures = append(m.failures[:i], m.failures[i+1:]...)
			return errs.Store(string(method), p, f.err)
		}
	}
	return nil
}

func (m *Memory) guard(ctx context.Context, method Method, p string) error {
	if err := checkContext(ctx); err != nil {
		return errs.Store(string(method), p, err)
	}
	if m.hub.isClosed() {
		return errs.Store(string(method), p, errClosed)
	}
	return m.injected(method, p)
}

func (m *Memory) Put(ctx context.Context, collection string, fields map[string]any) (Document, error) {
	if err := checkCollection(collection); err != nil {
		return Document{}, err
	}
	if err := m.guard(ctx, MethodPut, collection); err != nil {
		return Document{}, err
	}
	id := m.newID()
	docPath := Join(collection, id)
	stored, err := normalize(fields)
	if err != nil {
		return Document{}, errs.Store(string(MethodPut), docPath, err)
	}
	m.write(collection, id, stored)
	return Document{ID: id, Path: docPath, Fields: copyFields(stored)}, nil
}

func (m *Memory) Set(ctx context.Context, docPath string, fields map[string]any) error {
	if err := checkDocument(docPath); err != nil {
		return err
	}
	if err := m.guard(ctx, MethodSet, docPath); err != nil {
		return err
	}
	stored, err := normalize(fields)
	if err != nil {
		return errs.Store(string(MethodSet), docPath, err)
	}
	collection, id := Split(docPath)
	m.write(collection, id, stored)
	return nil
}

func (m *Memory) write(collection, id string, fields map[string]any) {
	m.mu.Lock()
	docs, ok := m.docs[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		m.docs[collection] = docs
	}
	docs[id] = fields
	m.mu.Unlock()
	m.hub.notify(collection)
}

func (m *Memory) Get(ctx context.Context, docPath string) (Document, error) {
	if err := checkDocument(docPath); err != nil {
		return Document{}, err
	}
	if err := m.guard(ctx, MethodGet, docPath); err != nil {
		return Document{}, err
	}
	collection, id := Split(docPath)
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.docs[collection][id]
	if !ok {
		return Document{}, errs.NotFound(string(MethodGet), docPath)
	}
	return Document{ID: id, Path: docPath, Fields: copyFields(fields)}, nil
}

func (m *Memory) Update(ctx context.Context, docPath string, patch Patch) error {
	if err := checkDocument(docPath); err != nil {
		return err
	}
	if err := m.guard(ctx, MethodUpdate, docPath); err != nil {
		return err
	}
	collection, id := Split(docPath)
	m.mu.Lock()
	current, ok := m.docs[collection][id]
	if !ok {
		m.mu.Unlock()
		return errs.NotFound(string(MethodUpdate), docPath)
	}
	merged, err := patch.Apply(current)
	if err != nil {
		m.mu.Unlock()
		return errs.Store(string(MethodUpdate), docPath, err)
	}
	m.docs[collection][id] = merged
	m.mu.Unlock()
	m.hub.notify(collection)
	return nil
}

func (m *Memory) Delete(ctx context.Context, docPath string) error {
	if err := checkDocument(docPath); err != nil {
		return err
	}
	if err := m.guard(ctx, MethodDelete, docPath); err != nil {
		return err
	}
	collection, id := Split(docPath)
	m.mu.Lock()
	_, existed := m.docs[collection][id]
	if existed {
		delete(m.docs[collection], id)
		if len(m.docs[collection]) == 0 {
			delete(m.docs, collection)
		}
	}
	m.mu.Unlock()
	if existed {
		m.hub.notify(collection)
	}
	return nil
}

func (m *Memory) ListAll(ctx context.Context, collection string) (Snapshot, error) {
	if err := checkCollection(collection); err != nil {
		return Snapshot{}, err
	}
	if err := m.guard(ctx, MethodList, collection); err != nil {
		return Snapshot{}, err
	}
	docs, _ := m.list(ctx, collection)
	return newSnapshot(collection, docs), nil
}

func (m *Memory) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if err := m.guard(ctx, MethodSubscribe, q.Collection); err != nil {
		return nil, err
	}
	return m.hub.subscribe(ctx, q)
}

func (m *Memory) list(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]Document, 0, len(m.docs[collection]))
	for id, fields := range m.docs[collection] {
		docs = append(docs, Document{ID: id, Path: Join(collection, id), Fields: copyFields(fields)})
	}
	sortDocs(docs)
	return docs, nil
}

// Paths returns every stored document path under prefix, sorted.
func (m *Memory) Paths(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var paths []string
	for collection, docs := range m.docs {
		for id := range docs {
			p := Join(collection, id)
			if prefix == "" || Within(p, prefix) {
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)
	return paths
}

// Close ends every subscription. Further calls fail.
func (m *Memory) Close() error {
	m.hub.close()
	return nil
}

func copyFields(fields map[string]any) map[string]any {
	out, err := normalize(fields)
	if err != nil {
		return map[string]any{}
	}
	return out
}
