package syncstore

import (
	"errors"
	"fmt"

	"github.com/tgienger/taskboard/internal/remote"
)

// ErrNotAuthenticated is returned (wrapped in a WriteError) when a write
// is attempted by a store that has no signed-in identity.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrClosed is returned when subscribing on a closed store
var ErrClosed = errors.New("store closed")

// errFeedClosed ends a feed whose events channel was closed by the remote
var errFeedClosed = errors.New("change feed closed")

// Write operations named in WriteError
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ReadError reports a failed collection read. The local copy of the
// collection is left as it was.
type ReadError struct {
	Table remote.Table
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Table, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a rejected or failed write. Nothing was applied
// locally.
type WriteError struct {
	Op    string
	Table remote.Table
	ID    string // empty for inserts
	Err   error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("failed to %s %s %s: %v", e.Op, e.Table, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// SubscriptionError reports a change feed that could not be opened or
// was dropped.
type SubscriptionError struct {
	Table remote.Table
	Err   error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("change feed for %s: %v", e.Table, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
