package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tgienger/taskboard/internal/remote"
)

// InsertProject creates a new project and returns its id
func (db *DB) InsertProject(ctx context.Context, row remote.ProjectInsert) (string, error) {
	id := uuid.NewString()
	now := db.now()

	_, err := db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, row.Name, nullString(&row.Description), row.CreatedBy, now, now)
	if err != nil {
		return "", classify(err, "failed to insert project")
	}

	db.hub.publish(remote.NewEvent(remote.EventInsert, remote.TableProjects))
	return id, nil
}

// PutProject inserts or replaces a project row as given, keeping its id
// and timestamps. Used by fixture loading.
func (db *DB) PutProject(ctx context.Context, row remote.ProjectRow) error {
	now := db.now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			updated_at = excluded.updated_at
	`, row.ID, row.Name, nullString(row.Description), row.CreatedBy,
		timeOr(row.CreatedAt, now), timeOr(row.UpdatedAt, now))
	if err != nil {
		return classify(err, "failed to put project %s", row.ID)
	}

	db.hub.publish(remote.NewEvent(remote.EventUpdate, remote.TableProjects))
	return nil
}

// ListProjects returns all projects, oldest first
func (db *DB) ListProjects(ctx context.Context) ([]remote.ProjectRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, created_by, created_at, updated_at
		FROM projects ORDER BY created_at, id
	`)
	if err != nil {
		return nil, classify(err, "failed to list projects")
	}
	defer rows.Close()

	projects := []remote.ProjectRow{}
	for rows.Next() {
		var (
			p                    remote.ProjectRow
			description          sql.NullString
			createdAt, updatedAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Name, &description, &p.CreatedBy, &createdAt, &updatedAt); err != nil {
			return nil, classify(err, "failed to scan project")
		}
		p.Description = stringPtr(description)
		p.CreatedAt = timePtr(createdAt)
		p.UpdatedAt = timePtr(updatedAt)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to list projects")
	}
	return projects, nil
}

// ProjectCount returns the number of projects
func (db *DB) ProjectCount(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&count)
	return count, err
}
