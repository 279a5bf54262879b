package store

import (
	"fmt"
	"strings"
)

// Operator is a filter comparison.
type Operator string

const (
	OpEqual         Operator = "=="
	OpArrayContains Operator = "array-contains"
)

// Filter narrows a query to documents whose Field matches Value.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Where builds a Filter.
func Where(field string, op Operator, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Match reports whether fields satisfy the filter.
func (f Filter) Match(fields map[string]any) bool {
	value, ok := fields[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return looseEqual(value, f.Value)
	case OpArrayContains:
		list, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if looseEqual(item, f.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value)
}

// looseEqual compares a stored (JSON normalized) value with a caller value.
func looseEqual(stored, want any) bool {
	if valuesEqual(stored, want) {
		return true
	}
	return fmt.Sprint(stored) == fmt.Sprint(want)
}

// Query selects the documents of one collection. A Deep query is also
// re-delivered when anything below the collection changes, which is what
// a subscriber joining subcollections needs.
type Query struct {
	Collection string
	Filters    []Filter
	Deep       bool
}

// Match reports whether fields satisfy every filter.
func (q Query) Match(fields map[string]any) bool {
	for _, f := range q.Filters {
		if !f.Match(fields) {
			return false
		}
	}
	return true
}

// Affected reports whether a change to collection can alter the result of q.
func (q Query) Affected(collection string) bool {
	if q.Collection == collection {
		return true
	}
	return q.Deep && Within(collection, q.Collection)
}

func (q Query) String() string {
	if len(q.Filters) == 0 {
		return q.Collection
	}
	parts := make([]string, len(q.Filters))
	for i, f := range q.Filters {
		parts[i] = f.String()
	}
	return q.Collection + " where " + strings.Join(parts, " and ")
}

func (q Query) apply(docs []Document) []Document {
	if len(q.Filters) == 0 {
		return docs
	}
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Match(d.Fields) {
			out = append(out, d)
		}
	}
	return out
}
