// Package store is the document store client every taskly component talks to.
//
// Documents are schema-less field maps addressed by slash separated paths
// that alternate collection and id segments (calendars/{id}/events/{id}).
// Deleting a document never touches its subcollections; callers cascade
// explicitly.
//
// Subscriptions deliver the entire current result set of a query, first
// immediately and then after every change that affects it. A slow consumer
// never blocks writers: an undelivered snapshot is replaced by the newer one.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Client is the contract shared by all backends.
type Client interface {
	// Put creates a document with a generated id under collection.
	Put(ctx context.Context, collection string, fields map[string]any) (Document, error)
	// Set creates or replaces the document at docPath.
	Set(ctx context.Context, docPath string, fields map[string]any) error
	Get(ctx context.Context, docPath string) (Document, error)
	// Update merges patch into an existing document. A missing document is
	// errs.ErrNotFound.
	Update(ctx context.Context, docPath string, patch Patch) error
	// Delete removes the document. Deleting a missing document succeeds.
	Delete(ctx context.Context, docPath string) error
	ListAll(ctx context.Context, collection string) (Snapshot, error)
	// Subscribe streams snapshots of q until ctx is done, then closes the
	// channel.
	Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error)
	Close() error
}

// Document is one stored record.
type Document struct {
	ID     string         `json:"id"`
	Path   string         `json:"path"`
	Fields map[string]any `json:"fields"`
}

// Collection returns the collection path holding the document.
func (d Document) Collection() string {
	collection, _ := Split(d.Path)
	return collection
}

// Snapshot is the full result set of a listing or a query delivery.
type Snapshot struct {
	Collection string
	Docs       []Document
	ReadAt     time.Time
}

// IDs returns the document ids in snapshot order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.Docs))
	for i, d := range s.Docs {
		ids[i] = d.ID
	}
	return ids
}

// normalize deep copies fields through JSON so every backend hands out the
// same shapes ([]any, map[string]any, float64, string) no matter what the
// caller wrote.
func normalize(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("store: encode fields: %w", err)
	}
	return decodeFields(data)
}

func decodeFields(data []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("store: decode fields: %w", err)
	}
	return out, nil
}

func sortDocs(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ID < docs[j].ID
	})
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

func newSnapshot(collection string, docs []Document) Snapshot {
	if docs == nil {
		docs = []Document{}
	}
	return Snapshot{Collection: collection, Docs: docs, ReadAt: time.Now()}
}
