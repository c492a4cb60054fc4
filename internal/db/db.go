package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/tgienger/taskboard/internal/remote"
)

//go:embed schema.sql
var schema string

// DB wraps the database connection. It implements remote.Client: every
// successful write publishes a change event for its table.
type DB struct {
	*sql.DB
	path string
	hub  *changeHub
	now  func() time.Time
}

// New opens (creating if needed) the database at path and initializes
// the schema.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{
		DB:   db,
		path: path,
		hub:  newChangeHub(),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Path returns the file the database was opened from
func (db *DB) Path() string {
	return db.path
}

// DefaultPath returns the default database location under the XDG data
// directory, creating the directory if needed.
func DefaultPath() (string, error) {
	// Use XDG data directory or fallback to home directory
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}

	appDir := filepath.Join(dataDir, "taskboard")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(appDir, "taskboard.db"), nil
}

// GetSetting retrieves a setting value by key
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting sets a setting value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Subscribe implements remote.Subscriber with the in-process change hub.
// The subscription also ends when ctx is cancelled.
func (db *DB) Subscribe(ctx context.Context, table remote.Table) (remote.Subscription, error) {
	if !table.Valid() {
		return nil, remote.Errorf(remote.CodeInvalid, "unknown table %q", table)
	}
	return db.hub.subscribe(ctx, table), nil
}

// Publish sends a change event to the table's subscribers. Writes made
// through DB publish on their own; the external watcher uses this.
func (db *DB) Publish(ev remote.ChangeEvent) {
	db.hub.publish(ev)
}

// classify maps driver errors to backend error codes
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return &remote.Error{Code: remote.CodeNotFound, Message: msg, Err: err}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &remote.Error{Code: remote.CodeConflict, Message: msg, Err: err}
		case sqlite3.ErrConstraintForeignKey, sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return &remote.Error{Code: remote.CodeInvalid, Message: msg, Err: err}
		}
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return &remote.Error{Code: remote.CodeUnavailable, Message: msg, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return *t
}
