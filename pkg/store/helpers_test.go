package store

import (
	"testing"
	"time"
)

// waitSnapshot reads deliveries until one satisfies match or the deadline
// passes.
func waitSnapshot(t *testing.T, ch <-chan Snapshot, match func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatal("subscription closed while waiting")
			}
			if match(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func hasIDs(want ...string) func(Snapshot) bool {
	return func(s Snapshot) bool {
		got := s.IDs()
		if len(got) != len(want) {
			return false
		}
		seen := make(map[string]bool, len(got))
		for _, id := range got {
			seen[id] = true
		}
		for _, id := range want {
			if !seen[id] {
				return false
			}
		}
		return true
	}
}
