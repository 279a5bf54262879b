package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestStoreErrorClassification(t *testing.T) {
	unavailable := Store("put", "calendars", errors.New("connection reset"))
	if !Is(unavailable, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", unavailable)
	}
	if !IsRetryable(unavailable) {
		t.Fatalf("expected retryable")
	}

	missing := NotFound("get", "calendars/abc")
	if Is(missing, ErrStoreUnavailable) {
		t.Fatalf("not found must not classify as unavailable")
	}
	if !Is(missing, ErrNotFound) {
		t.Fatalf("expected not found")
	}
	if IsRetryable(missing) {
		t.Fatalf("not found is not retryable")
	}
}

func TestStoreDoesNotDoubleWrap(t *testing.T) {
	inner := NotFound("get", "a/b")
	outer := Store("update", "a/b", inner)
	if outer != inner {
		t.Fatalf("expected existing StoreError to pass through")
	}
	if Store("x", "y", nil) != nil {
		t.Fatalf("nil in, nil out")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{Validation("end", "before start"), "validation"},
		{fmt.Errorf("wrapped: %w", &LostSourceError{Kind: "task", ID: "t1"}), "lost_source"},
		{&PartialCascadeError{CalendarID: "c", Err: errors.New("boom")}, "partial_cascade"},
		{NotFound("get", "x"), "not_found"},
		{Store("put", "x", errors.New("down")), "store_unavailable"},
		{errors.New("other"), "internal"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPartialCascadeUnwraps(t *testing.T) {
	cause := Store("delete", "calendars/c/events/e", errors.New("timeout"))
	err := &PartialCascadeError{CalendarID: "c", Deleted: []string{"calendars/c/events/e1", "calendars/c/events/e2"}, Remaining: []string{"calendars/c"}, Err: cause}
	if !Is(err, ErrPartialCascade) || !Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected both partial cascade and store unavailable: %v", err)
	}
	if !IsUserFacing(Validation("title", "required")) {
		t.Fatalf("validation errors are user facing")
	}
}
