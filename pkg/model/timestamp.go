package model

import (
	"time"
)

// FormatTime renders v the way it is persisted at the store boundary.
func FormatTime(v time.Time) string {
	return v.UTC().Format(time.RFC3339Nano)
}
