// Package seed loads fixture users, projects and tasks from YAML into the
// database. The embedded demo set is the stock dashboard data.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/remote"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demo []byte

// Fixture is a complete data set
type Fixture struct {
	Users    []User    `yaml:"users"`
	Projects []Project `yaml:"projects"`
	Tasks    []Task    `yaml:"tasks"`
}

// User is a profile, optionally with a login
type User struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Avatar   string `yaml:"avatar"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Project lists its member tasks by id
type Project struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	CreatedBy   string   `yaml:"created_by"`
	Tasks       []string `yaml:"tasks"`
}

// Task is a task row. Membership may come from ProjectID or from a
// project's task list, but the two must agree.
type Task struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Type        string    `yaml:"type"`
	Priority    string    `yaml:"priority"`
	Status      string    `yaml:"status"`
	ProjectID   string    `yaml:"project_id"`
	AssignedTo  string    `yaml:"assigned_to"`
	CreatedBy   string    `yaml:"created_by"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// Target receives fixture rows. *db.DB implements it.
type Target interface {
	PutProfile(ctx context.Context, row remote.ProfileRow) error
	PutAccount(ctx context.Context, profileID, email, password string) error
	PutProject(ctx context.Context, row remote.ProjectRow) error
	PutTask(ctx context.Context, row remote.TaskRow) error
}

// Summary counts what Load wrote
type Summary struct {
	Users    int
	Accounts int
	Projects int
	Tasks    int
}

// Demo returns the embedded demo fixture
func Demo() (*Fixture, error) {
	return Parse(demo)
}

// ReadFile parses the fixture at path
func ReadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a fixture, then resolves project
// membership onto the tasks.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := f.resolve(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) resolve() error {
	var errs []error

	users := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		switch {
		case u.ID == "" || u.Name == "":
			errs = append(errs, fmt.Errorf("user %q: id and name are required", u.ID))
		case users[u.ID]:
			errs = append(errs, fmt.Errorf("user %q: duplicate id", u.ID))
		}
		if (u.Email == "") != (u.Password == "") {
			errs = append(errs, fmt.Errorf("user %q: email and password go together", u.ID))
		}
		users[u.ID] = true
	}
	if len(f.Users) == 0 && (len(f.Projects) > 0 || len(f.Tasks) > 0) {
		return errors.New("fixture needs at least one user to own projects and tasks")
	}

	tasks := make(map[string]int, len(f.Tasks))
	for i, t := range f.Tasks {
		if t.ID == "" || t.Title == "" {
			errs = append(errs, fmt.Errorf("task %q: id and title are required", t.ID))
		}
		if _, dup := tasks[t.ID]; dup {
			errs = append(errs, fmt.Errorf("task %q: duplicate id", t.ID))
		}
		tasks[t.ID] = i
	}

	projects := make(map[string]bool, len(f.Projects))
	for i := range f.Projects {
		p := &f.Projects[i]
		if p.ID == "" || p.Name == "" {
			errs = append(errs, fmt.Errorf("project %q: id and name are required", p.ID))
		}
		if projects[p.ID] {
			errs = append(errs, fmt.Errorf("project %q: duplicate id", p.ID))
		}
		projects[p.ID] = true
		if p.CreatedBy == "" {
			p.CreatedBy = f.Users[0].ID
		} else if !users[p.CreatedBy] {
			errs = append(errs, fmt.Errorf("project %q: unknown creator %q", p.ID, p.CreatedBy))
		}

		for _, taskID := range p.Tasks {
			idx, ok := tasks[taskID]
			if !ok {
				errs = append(errs, fmt.Errorf("project %q: unknown task %q", p.ID, taskID))
				continue
			}
			t := &f.Tasks[idx]
			if t.ProjectID != "" && t.ProjectID != p.ID {
				errs = append(errs, fmt.Errorf("task %q: in both %q and %q", t.ID, t.ProjectID, p.ID))
				continue
			}
			t.ProjectID = p.ID
		}
	}

	for i := range f.Tasks {
		t := &f.Tasks[i]
		if t.ProjectID != "" && !projects[t.ProjectID] {
			errs = append(errs, fmt.Errorf("task %q: unknown project %q", t.ID, t.ProjectID))
		}
		if t.AssignedTo != "" && !users[t.AssignedTo] {
			errs = append(errs, fmt.Errorf("task %q: unknown assignee %q", t.ID, t.AssignedTo))
		}
		switch {
		case t.CreatedBy == "" && t.AssignedTo != "":
			t.CreatedBy = t.AssignedTo
		case t.CreatedBy == "" && len(f.Users) > 0:
			t.CreatedBy = f.Users[0].ID
		case !users[t.CreatedBy]:
			errs = append(errs, fmt.Errorf("task %q: unknown creator %q", t.ID, t.CreatedBy))
		}
		if err := t.fillEnums(); err != nil {
			errs = append(errs, fmt.Errorf("task %q: %w", t.ID, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid fixture: %w", err)
	}
	return nil
}

// fillEnums applies the draft defaults and rejects unknown values
func (t *Task) fillEnums() error {
	draft := models.TaskDraft{
		Type:     models.TaskType(t.Type),
		Priority: models.Priority(t.Priority),
		Status:   models.Status(t.Status),
	}.WithDefaults()

	if !draft.Type.Valid() {
		return fmt.Errorf("unknown type %q", t.Type)
	}
	if !draft.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", t.Priority)
	}
	if !draft.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	t.Type, t.Priority, t.Status = string(draft.Type), string(draft.Priority), string(draft.Status)
	return nil
}

// Load writes the fixture into target. Rows are upserted, so loading
// the same fixture twice leaves one copy.
func Load(ctx context.Context, target Target, f *Fixture) (Summary, error) {
	var s Summary

	for _, u := range f.Users {
		row := remote.ProfileRow{ID: u.ID, Name: u.Name}
		if u.Avatar != "" {
			row.AvatarURL = &u.Avatar
		}
		if err := target.PutProfile(ctx, row); err != nil {
			return s, fmt.Errorf("failed to load user %s: %w", u.ID, err)
		}
		s.Users++

		if u.Email != "" {
			if err := target.PutAccount(ctx, u.ID, u.Email, u.Password); err != nil {
				return s, fmt.Errorf("failed to load account for %s: %w", u.ID, err)
			}
			s.Accounts++
		}
	}

	for _, p := range f.Projects {
		row := remote.ProjectRow{ID: p.ID, Name: p.Name, CreatedBy: p.CreatedBy}
		if p.Description != "" {
			row.Description = &p.Description
		}
		if err := target.PutProject(ctx, row); err != nil {
			return s, fmt.Errorf("failed to load project %s: %w", p.ID, err)
		}
		s.Projects++
	}

	for _, t := range f.Tasks {
		if err := target.PutTask(ctx, t.row()); err != nil {
			return s, fmt.Errorf("failed to load task %s: %w", t.ID, err)
		}
		s.Tasks++
	}
	return s, nil
}

func (t Task) row() remote.TaskRow {
	row := remote.TaskRow{
		ID:        t.ID,
		Title:     t.Title,
		Type:      t.Type,
		Priority:  t.Priority,
		Status:    t.Status,
		CreatedBy: t.CreatedBy,
	}
	if t.Description != "" {
		row.Description = &t.Description
	}
	if t.ProjectID != "" {
		row.ProjectID = &t.ProjectID
	}
	if t.AssignedTo != "" {
		row.AssignedTo = &t.AssignedTo
	}
	if !t.CreatedAt.IsZero() {
		row.CreatedAt = &t.CreatedAt
	}
	if !t.UpdatedAt.IsZero() {
		row.UpdatedAt = &t.UpdatedAt
	}
	return row
}
