package models

import "time"

// User is a team member profile
type User struct {
	ID     string
	Name   string
	Avatar string // empty if the profile has no avatar
}

// Project groups tasks. TaskIDs is derived from the tasks' ProjectID
// and recomputed on every task reload; it is never stored.
type Project struct {
	ID          string
	Name        string
	Description string
	TaskIDs     []string
}

// Task represents a single task
type Task struct {
	ID          string
	Title       string
	Description string
	Type        TaskType
	Priority    Priority
	Status      Status
	ProjectID   string // empty if the task belongs to no project
	AssignedTo  string // empty if unassigned
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskDraft holds the caller-supplied fields of a new task. Zero enum
// values fall back to OTHER, MEDIUM and TODO.
type TaskDraft struct {
	Title       string
	Description string
	Type        TaskType
	Priority    Priority
	Status      Status
	ProjectID   string
	AssignedTo  string
}

// WithDefaults returns a copy of d with empty enums filled in
func (d TaskDraft) WithDefaults() TaskDraft {
	if d.Type == "" {
		d.Type = TypeOther
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if d.Status == "" {
		d.Status = StatusTodo
	}
	return d
}

// TaskPatch is a partial task update. Nil fields are left unchanged.
// For ProjectID and AssignedTo a pointer to "" clears the reference.
type TaskPatch struct {
	Title       *string
	Description *string
	Type        *TaskType
	Priority    *Priority
	Status      *Status
	ProjectID   *string
	AssignedTo  *string
}

// Empty reports whether the patch changes nothing
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Type == nil &&
		p.Priority == nil && p.Status == nil && p.ProjectID == nil && p.AssignedTo == nil
}

// ProjectDraft holds the fields of a new project
type ProjectDraft struct {
	Name        string
	Description string
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
