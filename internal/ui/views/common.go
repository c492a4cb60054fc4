package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskboard/internal/auth"
	"github.com/tgienger/taskboard/internal/remote"
	"github.com/tgienger/taskboard/internal/syncstore"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/view"
)

// writeTimeout bounds a single remote write started from the UI
const writeTimeout = 10 * time.Second

// Session is the state of a signed-in user the pages render from
type Session struct {
	Store  *syncstore.Store
	Filter *view.Filter
}

// NewSession wraps store with a fresh filter
func NewSession(store *syncstore.Store) *Session {
	return &Session{Store: store, Filter: view.NewFilter(store)}
}

// UserName returns the display name for a user id
func (s *Session) UserName(id string) string {
	if id == "" {
		return "Unassigned"
	}
	if u, ok := s.Store.User(id); ok {
		return u.Name
	}
	return "Unknown user"
}

// ProjectName returns the display name for a project id
func (s *Session) ProjectName(id string) string {
	if id == "" {
		return "No project"
	}
	for _, p := range s.Store.Projects() {
		if p.ID == id {
			return p.Name
		}
	}
	return "Unknown project"
}

// Notify asks the app to show a transient message
type Notify struct {
	Text string
	Err  bool
}

// SignedIn is sent once the auth form produced an identity
type SignedIn struct {
	Identity *auth.Identity
}

// notify returns a command emitting a Notify
func notify(text string, err error) tea.Cmd {
	return func() tea.Msg {
		if err != nil {
			return Notify{Text: fmt.Sprintf("%s: %s", text, errorText(err)), Err: true}
		}
		return Notify{Text: text}
	}
}

// errorText renders store errors for the status line
func errorText(err error) string {
	if errors.Is(err, syncstore.ErrNotAuthenticated) {
		return "you are not signed in"
	}
	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) {
		switch remoteErr.Code {
		case remote.CodeNotFound:
			return "it no longer exists"
		case remote.CodeUnavailable:
			return "the server is unavailable"
		}
		return remoteErr.Error()
	}
	return err.Error()
}

// writeCtx is the context for one UI-initiated write
func writeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), writeTimeout)
}

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// helpLine renders "key desc • key desc" pairs
func helpLine(s *styles.Styles, pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, s.HelpKey.Render(pairs[i])+" "+pairs[i+1])
	}
	return s.Help.Render(strings.Join(parts, " • "))
}

// pad renders s left-aligned in a cell of width columns
func pad(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

// truncate shortens s to width cells, adding an ellipsis
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
