package store

import (
	"fmt"
	"strings"

	"tableflip.dev/taskly/pkg/errs"
)

// Collection names.
const (
	CollectionCalendars = "calendars"
	CollectionEvents    = "events"
	CollectionSubtasks  = "tasks"
	CollectionUsers     = "users"
	CollectionTodos     = "todos"
)

// Join builds a path from segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

func CalendarsPath() string { return CollectionCalendars }

func CalendarPath(calendarID string) string {
	return Join(CollectionCalendars, calendarID)
}

func EventsPath(calendarID string) string {
	return Join(CollectionCalendars, calendarID, CollectionEvents)
}

func EventPath(calendarID, eventID string) string {
	return Join(EventsPath(calendarID), eventID)
}

func SubtasksPath(calendarID, eventID string) string {
	return Join(EventPath(calendarID, eventID), CollectionSubtasks)
}

func SubtaskPath(calendarID, eventID, subtaskID string) string {
	return Join(SubtasksPath(calendarID, eventID), subtaskID)
}

func TodosPath(userID string) string {
	return Join(CollectionUsers, userID, CollectionTodos)
}

func TodoPath(userID, taskID string) string {
	return Join(TodosPath(userID), taskID)
}

// Split returns the collection and id of a document path.
func Split(docPath string) (collection, id string) {
	i := strings.LastIndex(docPath, "/")
	if i < 0 {
		return "", docPath
	}
	return docPath[:i], docPath[i+1:]
}

// IsCollectionPath reports whether p names a collection (odd segment count).
func IsCollectionPath(p string) bool {
	parts, ok := segments(p)
	return ok && len(parts)%2 == 1
}

// IsDocumentPath reports whether p names a document (even segment count).
func IsDocumentPath(p string) bool {
	parts, ok := segments(p)
	return ok && len(parts)%2 == 0
}

// Within reports whether p is the collection itself or lies anywhere below it.
func Within(p, collection string) bool {
	return p == collection || strings.HasPrefix(p, collection+"/")
}

func segments(p string) ([]string, bool) {
	if p == "" {
		return nil, false
	}
	parts := strings.Split(p, "/")
	for _, part := range parts {
		if strings.TrimSpace(part) == "" || part == "." || part == ".." {
			return nil, false
		}
	}
	return parts, true
}

func checkCollection(p string) error {
	if !IsCollectionPath(p) {
		return errs.Validation("path", fmt.Sprintf("invalid collection path %q", p))
	}
	return nil
}

func checkDocument(p string) error {
	if !IsDocumentPath(p) {
		return errs.Validation("path", fmt.Sprintf("invalid document path %q", p))
	}
	return nil
}
