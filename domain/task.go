package domain

import (
	"errors"
	"strings"
)

// ListID names one of the three board lists. The values double as the wire
// names accepted by the HTTP API.
type ListID string

const (
	Todo       ListID = "todo"
	InProgress ListID = "inProgress"
	Completed  ListID = "completed"
)

// ErrUnknownList is returned by ParseListID for anything but the three list names.
var ErrUnknownList = errors.New("unknown list")

// ParseListID validates a list name received from a client.
func ParseListID(s string) (ListID, error) {
	switch id := ListID(s); id {
	case Todo, InProgress, Completed:
		return id, nil
	default:
		return "", ErrUnknownList
	}
}

// Title is the heading shown for the list.
func (l ListID) Title() string {
	switch l {
	case Todo:
		return "To Do"
	case InProgress:
		return "In Progress"
	case Completed:
		return "Completed"
	}
	return ""
}

// NormalizeTask trims surrounding whitespace. An empty result is not a valid task.
func NormalizeTask(text string) (string, bool) {
	t := strings.TrimSpace(text)
	return t, t != ""
}

// TaskList is an ordered sequence of task texts. Position is insertion order.
type TaskList []string

// Contains reports whether text is present verbatim.
func (l TaskList) Contains(text string) bool {
	for _, t := range l {
		if t == text {
			return true
		}
	}
	return false
}

// Count returns the number of occurrences of text.
func (l TaskList) Count(text string) int {
	n := 0
	for _, t := range l {
		if t == text {
			n++
		}
	}
	return n
}

// Without returns the list with every occurrence of text removed. The receiver
// is returned unchanged when text is absent.
func (l TaskList) Without(text string) TaskList {
	if !l.Contains(text) {
		return l
	}
	out := make(TaskList, 0, len(l)-1)
	for _, t := range l {
		if t != text {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns an independent copy that is never nil.
func (l TaskList) Clone() TaskList {
	out := make(TaskList, len(l))
	copy(out, l)
	return out
}

// Last returns the final entry, if any.
func (l TaskList) Last() (string, bool) {
	if len(l) == 0 {
		return "", false
	}
	return l[len(l)-1], true
}
