package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tgienger/taskboard/internal/auth"
	"github.com/tgienger/taskboard/internal/remote"
	"golang.org/x/crypto/bcrypt"
)

// sessionKey is the settings key holding the signed-in profile id
const sessionKey = "session_user_id"

const minPasswordLength = 6

// Accounts is the local identity provider. Passwords are stored as
// bcrypt hashes and the session survives restarts through the settings
// table.
type Accounts struct {
	db *DB

	mu      sync.RWMutex
	current *auth.Identity
}

// NewAccounts creates the provider and restores a persisted session, if
// its account still exists.
func NewAccounts(ctx context.Context, db *DB) (*Accounts, error) {
	a := &Accounts{db: db}

	id, err := db.GetSetting(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if id == "" {
		return a, nil
	}

	var email string
	err = db.QueryRowContext(ctx, "SELECT email FROM accounts WHERE id = ?", id).Scan(&email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Stale session
		if err := db.SetSetting(sessionKey, ""); err != nil {
			return nil, fmt.Errorf("failed to clear session: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to restore session: %w", err)
	default:
		a.current = &auth.Identity{ID: id, Email: email}
	}
	return a, nil
}

// CurrentIdentity implements auth.Provider
func (a *Accounts) CurrentIdentity() *auth.Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return nil
	}
	id := *a.current
	return &id
}

// SignIn implements auth.Provider
func (a *Accounts) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	email = strings.TrimSpace(email)

	var id, hash string
	err := a.db.QueryRowContext(ctx,
		"SELECT id, password_hash FROM accounts WHERE email = ?", email,
	).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, &auth.Error{Message: "Could not reach the account store", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, auth.ErrInvalidCredentials
	}

	return a.begin(auth.Identity{ID: id, Email: email})
}

// SignUp implements auth.Provider. It creates the account and its
// profile in one transaction and signs the new user in.
func (a *Accounts) SignUp(ctx context.Context, email, password, name string) (*auth.Identity, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &auth.Error{Message: "Please enter a valid email address", Err: err}
	}
	if len(password) < minPasswordLength {
		return nil, &auth.Error{Message: fmt.Sprintf("Password must be at least %d characters", minPasswordLength)}
	}
	if name == "" {
		return nil, &auth.Error{Message: "Please enter your name"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &auth.Error{Message: "An error occurred", Err: err}
	}

	id := uuid.NewString()
	now := a.db.now()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &auth.Error{Message: "Could not reach the account store", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, id, name, now, now)
	if err != nil {
		return nil, &auth.Error{Message: "An error occurred", Err: err}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
	`, id, email, string(hash), now)
	if err != nil {
		if remote.CodeOf(classify(err, "account")) == remote.CodeConflict {
			return nil, auth.ErrEmailTaken
		}
		return nil, &auth.Error{Message: "An error occurred", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &auth.Error{Message: "An error occurred", Err: err}
	}

	a.db.hub.publish(remote.NewEvent(remote.EventInsert, remote.TableProfiles))
	return a.begin(auth.Identity{ID: id, Email: email})
}

// PutAccount gives an existing profile a login, replacing any previous
// email and password for it.
func (db *DB) PutAccount(ctx context.Context, profileID, email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return remote.Errorf(remote.CodeInvalid, "invalid email %q", email)
	}
	if len(password) < minPasswordLength {
		return remote.Errorf(remote.CodeInvalid, "password for %s is shorter than %d characters", email, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, password_hash = excluded.password_hash
	`, profileID, email, string(hash), db.now())
	if err != nil {
		return classify(err, "failed to put account %s", profileID)
	}
	return nil
}

// SignOut implements auth.Provider
func (a *Accounts) SignOut(ctx context.Context) error {
	if err := a.db.SetSetting(sessionKey, ""); err != nil {
		return &auth.Error{Message: "Could not sign out", Err: err}
	}
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()
	return nil
}

func (a *Accounts) begin(id auth.Identity) (*auth.Identity, error) {
	if err := a.db.SetSetting(sessionKey, id.ID); err != nil {
		return nil, &auth.Error{Message: "Could not save the session", Err: err}
	}
	a.mu.Lock()
	a.current = &id
	a.mu.Unlock()

	out := id
	return &out, nil
}
