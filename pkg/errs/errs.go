// Package errs defines the error kinds taskly reports to its callers.
//
// Every failure in the sync engine is local to one operation and comes back
// as a typed value rather than a panic:
//
//   - [ValidationError]: input rejected before any write was issued.
//   - [StoreError]: the document store refused or failed a call. Retryable
//     unless it wraps [ErrNotFound].
//   - [PartialCascadeError]: a multi-step delete stopped partway. Calling the
//     delete again resumes it.
//   - [LostSourceError]: the dragged item vanished before the drop resolved.
//
// Callers test kinds with [Is] and [As] or the classification helpers
// [IsRetryable], [IsUserFacing] and [Kind].
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors. Typed errors below report true for errors.Is against the
// matching sentinel.
var (
	// ErrNotFound indicates the addressed document does not exist.
	ErrNotFound = New("not found")
	// ErrStoreUnavailable indicates a network or write failure at the store.
	ErrStoreUnavailable = New("store unavailable")
	// ErrValidation indicates the input was rejected before any write.
	ErrValidation = New("validation failed")
	// ErrPartialCascade indicates a cascade delete stopped partway.
	ErrPartialCascade = New("partial cascade")
	// ErrLostSource indicates a drag source disappeared before the drop.
	ErrLostSource = New("drag source lost")
)

// ValidationError describes a rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

// Validation builds a ValidationError.
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError wraps a failure returned by a store backend.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

// Store wraps err as a StoreError. A nil err yields nil.
func Store(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Path: path, Err: err}
}

// NotFound builds a StoreError that wraps ErrNotFound.
func NotFound(op, path string) error {
	return &StoreError{Op: op, Path: path, Err: ErrNotFound}
}

func (e *StoreError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	if target == ErrStoreUnavailable {
		return !errors.Is(e.Err, ErrNotFound)
	}
	return false
}

// PartialCascadeError reports a cascade delete that stopped partway. Deleted
// paths were confirmed gone; Remaining paths were not.
type PartialCascadeError struct {
	CalendarID string
	Deleted    []string
	Remaining  []string
	Err        error
}

func (e *PartialCascadeError) Error() string {
	return fmt.Sprintf("calendar %s: cascade stopped after %d deletions, %d remaining: %v",
		e.CalendarID, len(e.Deleted), len(e.Remaining), e.Err)
}

func (e *PartialCascadeError) Unwrap() error { return e.Err }

func (e *PartialCascadeError) Is(target error) bool {
	return target == ErrPartialCascade
}

// LostSourceError reports a drag source that no longer exists.
type LostSourceError struct {
	Kind string
	ID   string
}

func (e *LostSourceError) Error() string {
	return fmt.Sprintf("%s %s is no longer available", e.Kind, e.ID)
}

func (e *LostSourceError) Is(target error) bool {
	return target == ErrLostSource
}

// IsRetryable reports whether repeating the same action may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrStoreUnavailable) || Is(err, ErrPartialCascade)
}

// IsUserFacing reports whether err carries a message meant for the user.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrValidation) || Is(err, ErrLostSource) || Is(err, ErrNotFound)
}

// Kind names the error kind of err for logs and transport payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrValidation):
		return "validation"
	case Is(err, ErrLostSource):
		return "lost_source"
	case Is(err, ErrPartialCascade):
		return "partial_cascade"
	case Is(err, ErrNotFound):
		return "not_found"
	case Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}

// Describe renders err with its kind prefix, used by CLI output.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	kind := Kind(err)
	return strings.ReplaceAll(kind, "_", " ") + ": " + err.Error()
}
