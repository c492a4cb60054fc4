package db

import (
	"context"
	"database/sql"

	"github.com/tgienger/taskboard/internal/remote"
)

const profileColumns = "id, name, avatar_url, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(s rowScanner) (remote.ProfileRow, error) {
	var (
		p                    remote.ProfileRow
		avatar               sql.NullString
		createdAt, updatedAt sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Name, &avatar, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	p.AvatarURL = stringPtr(avatar)
	p.CreatedAt = timePtr(createdAt)
	p.UpdatedAt = timePtr(updatedAt)
	return p, nil
}

// ListProfiles returns every profile ordered by name
func (db *DB) ListProfiles(ctx context.Context) ([]remote.ProfileRow, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+profileColumns+" FROM profiles ORDER BY name COLLATE NOCASE, id")
	if err != nil {
		return nil, classify(err, "failed to list profiles")
	}
	defer rows.Close()

	profiles := []remote.ProfileRow{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, classify(err, "failed to scan profile")
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to list profiles")
	}
	return profiles, nil
}

// GetProfile retrieves a profile by id
func (db *DB) GetProfile(ctx context.Context, id string) (remote.ProfileRow, error) {
	row := db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = ?", id)
	p, err := scanProfile(row)
	if err != nil {
		return remote.ProfileRow{}, classify(err, "profile %s", id)
	}
	return p, nil
}

// PutProfile inserts or replaces a profile row, keeping its id
func (db *DB) PutProfile(ctx context.Context, row remote.ProfileRow) error {
	now := db.now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO profiles (id, name, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
	`, row.ID, row.Name, nullString(row.AvatarURL), timeOr(row.CreatedAt, now), timeOr(row.UpdatedAt, now))
	if err != nil {
		return classify(err, "failed to put profile %s", row.ID)
	}

	db.hub.publish(remote.NewEvent(remote.EventUpdate, remote.TableProfiles))
	return nil
}
