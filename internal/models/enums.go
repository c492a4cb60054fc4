package models

import "fmt"

// TaskType tags what kind of work a task is
type TaskType string

const (
	TypeSystem   TaskType = "SYSTEM"
	TypeServer   TaskType = "SERVER"
	TypeBug      TaskType = "BUG"
	TypeDatabase TaskType = "DATABASE"
	TypeCode     TaskType = "CODE"
	TypeSecurity TaskType = "SECURITY"
	TypeNetwork  TaskType = "NETWORK"
	TypeOther    TaskType = "OTHER"
)

// TaskTypes lists every task type in display order
var TaskTypes = []TaskType{
	TypeSystem, TypeServer, TypeBug, TypeDatabase,
	TypeCode, TypeSecurity, TypeNetwork, TypeOther,
}

// Priority of a task
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Priorities lists every priority from lowest to highest
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Status of a task
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists every status in workflow order
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// StatusFilter selects tasks by status. FilterAll selects every task.
type StatusFilter string

// FilterAll matches tasks of any status
const FilterAll StatusFilter = "ALL"

// StatusFilters lists the status tabs in display order
var StatusFilters = []StatusFilter{
	FilterAll,
	StatusFilter(StatusTodo),
	StatusFilter(StatusInProgress),
	StatusFilter(StatusDone),
}

// FilterFor returns the filter that selects exactly status s
func FilterFor(s Status) StatusFilter {
	return StatusFilter(s)
}

// Valid reports whether t is one of the fixed task types
func (t TaskType) Valid() bool {
	for _, v := range TaskTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Valid reports whether p is one of the fixed priorities
func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the fixed statuses
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Valid reports whether f is ALL or a valid status
func (f StatusFilter) Valid() bool {
	return f == FilterAll || Status(f).Valid()
}

// Label returns the human-readable name of a status
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// Label returns the tab title for a filter
func (f StatusFilter) Label() string {
	if f == FilterAll {
		return "All Tasks"
	}
	return Status(f).Label()
}

// ParseTaskType converts a stored value into a TaskType
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid task type %q", s)
	}
	return t, nil
}

// ParsePriority converts a stored value into a Priority
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q", s)
	}
	return p, nil
}

// ParseStatus converts a stored value into a Status
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return st, nil
}

// ParseStatusFilter converts a tab value into a StatusFilter
func ParseStatusFilter(s string) (StatusFilter, error) {
	f := StatusFilter(s)
	if !f.Valid() {
		return "", fmt.Errorf("invalid status filter %q", s)
	}
	return f, nil
}

// Next returns the value after t, wrapping around. Used by form cyclers.
func (t TaskType) Next() TaskType { return next(TaskTypes, t) }

// Next returns the value after p, wrapping around
func (p Priority) Next() Priority { return next(Priorities, p) }

// Next returns the value after s, wrapping around
func (s Status) Next() Status { return next(Statuses, s) }

func next[T comparable](values []T, current T) T {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}
