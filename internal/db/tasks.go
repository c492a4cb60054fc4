package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tgienger/taskboard/internal/remote"
)

const taskColumns = `id, title, description, type, priority, status, project_id,
	assigned_to, created_by, created_at, updated_at`

func scanTask(s rowScanner) (remote.TaskRow, error) {
	var (
		t                     remote.TaskRow
		description           sql.NullString
		projectID, assignedTo sql.NullString
		createdAt, updatedAt  sql.NullTime
	)
	err := s.Scan(&t.ID, &t.Title, &description, &t.Type, &t.Priority, &t.Status,
		&projectID, &assignedTo, &t.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return t, err
	}
	t.Description = stringPtr(description)
	t.ProjectID = stringPtr(projectID)
	t.AssignedTo = stringPtr(assignedTo)
	t.CreatedAt = timePtr(createdAt)
	t.UpdatedAt = timePtr(updatedAt)
	return t, nil
}

// InsertTask creates a new task and returns its id
func (db *DB) InsertTask(ctx context.Context, row remote.TaskInsert) (string, error) {
	id := uuid.NewString()
	now := db.now()

	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, type, priority, status,
			project_id, assigned_to, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, row.Title, nullString(&row.Description), row.Type, row.Priority, row.Status,
		nullString(row.ProjectID), nullString(row.AssignedTo), row.CreatedBy, now, now)
	if err != nil {
		return "", classify(err, "failed to insert task")
	}

	db.hub.publish(remote.NewEvent(remote.EventInsert, remote.TableTasks))
	return id, nil
}

// PutTask inserts or replaces a task row as given, keeping its id and
// timestamps. Used by fixture loading. A replaced row keeps its
// created_at, and updated_at is clamped the same way UpdateTask does.
func (db *DB) PutTask(ctx context.Context, row remote.TaskRow) error {
	now := db.now()
	createdAt := timeOr(row.CreatedAt, now)
	updatedAt := timeOr(row.UpdatedAt, now)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var prevCreatedAt, prevUpdatedAt time.Time
	err = tx.QueryRowContext(ctx, "SELECT created_at, updated_at FROM tasks WHERE id = ?", row.ID).
		Scan(&prevCreatedAt, &prevUpdatedAt)
	switch {
	case err == nil:
		createdAt = prevCreatedAt
		updatedAt = latest(updatedAt, prevCreatedAt, prevUpdatedAt)
	case errors.Is(err, sql.ErrNoRows):
		updatedAt = latest(updatedAt, createdAt)
	default:
		return classify(err, "failed to put task %s", row.ID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, type, priority, status,
			project_id, assigned_to, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			type = excluded.type,
			priority = excluded.priority,
			status = excluded.status,
			project_id = excluded.project_id,
			assigned_to = excluded.assigned_to,
			updated_at = excluded.updated_at
	`, row.ID, row.Title, nullString(row.Description), row.Type, row.Priority, row.Status,
		nullString(row.ProjectID), nullString(row.AssignedTo), row.CreatedBy,
		createdAt, updatedAt)
	if err != nil {
		return classify(err, "failed to put task %s", row.ID)
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "failed to commit task %s", row.ID)
	}

	db.hub.publish(remote.NewEvent(remote.EventUpdate, remote.TableTasks))
	return nil
}

// latest returns the latest of t and others
func latest(t time.Time, others ...time.Time) time.Time {
	for _, o := range others {
		if o.After(t) {
			t = o
		}
	}
	return t
}

// GetTask retrieves a task by id
func (db *DB) GetTask(ctx context.Context, id string) (remote.TaskRow, error) {
	row := db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err != nil {
		return remote.TaskRow{}, classify(err, "task %s", id)
	}
	return t, nil
}

// ListTasks returns all tasks, oldest first
func (db *DB) ListTasks(ctx context.Context) ([]remote.TaskRow, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY created_at, id")
	if err != nil {
		return nil, classify(err, "failed to list tasks")
	}
	defer rows.Close()

	tasks := []remote.TaskRow{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, classify(err, "failed to scan task")
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to list tasks")
	}
	return tasks, nil
}

// UpdateTask applies the non-nil fields of update to the task. The
// stored updated_at never goes below created_at or its previous value.
func (db *DB) UpdateTask(ctx context.Context, id string, update remote.TaskUpdate) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var createdAt, prevUpdatedAt time.Time
	err = tx.QueryRowContext(ctx, "SELECT created_at, updated_at FROM tasks WHERE id = ?", id).
		Scan(&createdAt, &prevUpdatedAt)
	if err != nil {
		return classify(err, "task %s", id)
	}

	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = db.now()
	}
	updatedAt = latest(updatedAt, createdAt, prevUpdatedAt)

	sets := []string{"updated_at = ?"}
	args := []any{updatedAt}
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if update.Title != nil {
		set("title", *update.Title)
	}
	if update.Description != nil {
		set("description", nullString(update.Description))
	}
	if update.Type != nil {
		set("type", *update.Type)
	}
	if update.Priority != nil {
		set("priority", *update.Priority)
	}
	if update.Status != nil {
		set("status", *update.Status)
	}
	if update.ProjectID != nil {
		set("project_id", nullString(update.ProjectID))
	}
	if update.AssignedTo != nil {
		set("assigned_to", nullString(update.AssignedTo))
	}

	args = append(args, id)
	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return classify(err, "failed to update task %s", id)
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "failed to commit task %s", id)
	}

	db.hub.publish(remote.NewEvent(remote.EventUpdate, remote.TableTasks))
	return nil
}

// DeleteTask deletes a task
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return classify(err, "failed to delete task %s", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return classify(err, "failed to delete task %s", id)
	}
	if n == 0 {
		return remote.Errorf(remote.CodeNotFound, "task %s", id)
	}

	db.hub.publish(remote.NewEvent(remote.EventDelete, remote.TableTasks))
	return nil
}

// TaskCount returns the number of tasks
func (db *DB) TaskCount(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count)
	return count, err
}
