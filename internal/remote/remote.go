// Package remote defines the contract of the backend service that owns
// profiles, projects and tasks: whole-collection reads, row writes keyed
// by id, and per-table change feeds.
//
// Row types use the backend's snake_case field names. Mapping rows to
// the models package is the consumer's job.
package remote

import (
	"context"
	"time"
)

// Table names a remote collection
type Table string

const (
	TableProfiles Table = "profiles"
	TableProjects Table = "projects"
	TableTasks    Table = "tasks"
)

// Schema is the namespace every table lives in
const Schema = "public"

// Tables lists every collection
var Tables = []Table{TableProfiles, TableProjects, TableTasks}

// Valid reports whether t names a known collection
func (t Table) Valid() bool {
	for _, v := range Tables {
		if t == v {
			return true
		}
	}
	return false
}

// ProfileRow is a row of the profiles table
type ProfileRow struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	AvatarURL *string    `json:"avatar_url"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// ProjectRow is a row of the projects table
type ProjectRow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// TaskRow is a row of the tasks table
type TaskRow struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Type        string     `json:"type"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	ProjectID   *string    `json:"project_id"`
	AssignedTo  *string    `json:"assigned_to"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// TaskInsert is the payload of a task insert. The backend assigns the
// id and both timestamps.
type TaskInsert struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	ProjectID   *string `json:"project_id"`
	AssignedTo  *string `json:"assigned_to"`
	CreatedBy   string  `json:"created_by"`
}

// TaskUpdate is a partial task update. Nil fields are not touched.
// A ProjectID or AssignedTo pointing at "" sets the column to null.
type TaskUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Type        *string   `json:"type,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Status      *string   `json:"status,omitempty"`
	ProjectID   *string   `json:"project_id,omitempty"`
	AssignedTo  *string   `json:"assigned_to,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectInsert is the payload of a project insert
type ProjectInsert struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

// Reader reads whole collections
type Reader interface {
	ListProfiles(ctx context.Context) ([]ProfileRow, error)
	GetProfile(ctx context.Context, id string) (ProfileRow, error)
	ListProjects(ctx context.Context) ([]ProjectRow, error)
	ListTasks(ctx context.Context) ([]TaskRow, error)
}

// Writer submits row writes. Each call either fully applies or fails.
type Writer interface {
	InsertTask(ctx context.Context, row TaskInsert) (string, error)
	UpdateTask(ctx context.Context, id string, update TaskUpdate) error
	DeleteTask(ctx context.Context, id string) error
	InsertProject(ctx context.Context, row ProjectInsert) (string, error)
}

// Subscriber opens change feeds
type Subscriber interface {
	// Subscribe opens a standing feed of change events for table.
	// The feed ends when Unsubscribe is called or the connection
	// drops; either way the Events channel is closed.
	Subscribe(ctx context.Context, table Table) (Subscription, error)
}

// ReadWriter is a backend without its own change feed
type ReadWriter interface {
	Reader
	Writer
}

// Client is the full backend contract
type Client interface {
	Reader
	Writer
	Subscriber
}

// WithSubscriber returns a Client that reads and writes through rw and
// takes its change feeds from sub.
func WithSubscriber(rw ReadWriter, sub Subscriber) Client {
	return composite{ReadWriter: rw, sub: sub}
}

type composite struct {
	ReadWriter
	sub Subscriber
}

func (c composite) Subscribe(ctx context.Context, table Table) (Subscription, error) {
	return c.sub.Subscribe(ctx, table)
}
