package store

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Patch is a partial update. Plain values replace the field; the special
// values returned by ArrayUnion, ArrayRemove and DeleteField are applied
// against the stored document under the backend's write lock.
type Patch map[string]any

type arrayUnion struct{ values []any }

type arrayRemove struct{ values []any }

type deleteField struct{}

// ArrayUnion adds each value to the array field unless already present.
func ArrayUnion(values ...any) any {
	return arrayUnion{values: values}
}

// ArrayRemove removes every occurrence of each value from the array field.
func ArrayRemove(values ...any) any {
	return arrayRemove{values: values}
}

// DeleteField removes the field.
func DeleteField() any {
	return deleteField{}
}

// Apply returns the result of merging p into fields. fields is not modified.
func (p Patch) Apply(fields map[string]any) (map[string]any, error) {
	out, err := normalize(fields)
	if err != nil {
		return nil, err
	}
	for key, value := range p {
		switch v := value.(type) {
		case deleteField:
			delete(out, key)
		case arrayUnion:
			values, err := normalizeValues(v.values)
			if err != nil {
				return nil, err
			}
			current := asArray(out[key])
			for _, candidate := range values {
				if !containsValue(current, candidate) {
					current = append(current, candidate)
				}
			}
			out[key] = current
		case arrayRemove:
			values, err := normalizeValues(v.values)
			if err != nil {
				return nil, err
			}
			current := asArray(out[key])
			kept := make([]any, 0, len(current))
			for _, existing := range current {
				if !containsValue(values, existing) {
					kept = append(kept, existing)
				}
			}
			out[key] = kept
		default:
			out[key] = value
		}
	}
	return normalize(out)
}

// Plain reports whether the patch carries only replacement values.
func (p Patch) Plain() bool {
	for _, value := range p {
		switch value.(type) {
		case deleteField, arrayUnion, arrayRemove:
			return false
		}
	}
	return true
}

func asArray(v any) []any {
	switch a := v.(type) {
	case []any:
		out := make([]any, len(a))
		copy(out, a)
		return out
	case nil:
		return []any{}
	default:
		return []any{a}
	}
}

func normalizeValues(values []any) ([]any, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("store: encode array values: %w", err)
	}
	var out []any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("store: decode array values: %w", err)
	}
	return out, nil
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	return reflect.DeepEqual(a, b)
}
