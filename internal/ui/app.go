package ui

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskboard/internal/auth"
	"github.com/tgienger/taskboard/internal/remote"
	"github.com/tgienger/taskboard/internal/syncstore"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/ui/views"
)

// Page is a top-level screen of a signed-in session
type Page int

const (
	PageDashboard Page = iota
	PageTasks
	PageProjects
	PageTeam
)

var pageNames = []string{"Dashboard", "Tasks", "Projects", "Team"}

const (
	lastPageSetting = "last_page"
	startTimeout    = 30 * time.Second
	noticeDuration  = 4 * time.Second
)

// Settings persists small UI preferences between runs
type Settings interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// Config wires the app to its backend
type Config struct {
	Provider  auth.Provider
	Client    remote.Client
	Settings  Settings // optional
	Logger    *slog.Logger
	Subscribe syncstore.SubscribeConfig
	Backoff   syncstore.BackoffConfig
}

// StoreChangedMsg is sent when the session's store replaced a collection
type StoreChangedMsg struct {
	store      *syncstore.Store
	Collection syncstore.Collection
}

type storeStartedMsg struct {
	store *syncstore.Store
	err   error
}

type signedOutMsg struct{ err error }

type clearNoticeMsg struct{ seq int }

// capturer is a page that may be routing keys into a text field
type capturer interface {
	Capturing() bool
}

type App struct {
	cfg    Config
	logger *slog.Logger
	keys   keys.KeyMap
	styles *styles.Styles
	send   func(tea.Msg)

	authView *views.AuthView
	session  *views.Session
	page     Page
	pages    []tea.Model

	notice    views.Notify
	noticeSeq int

	width  int
	height int
}

// NewApp creates the application. Call SetSender with the program's
// Send before running it so store changes reach the UI.
func NewApp(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:      cfg,
		logger:   logger.With("component", "ui"),
		keys:     keys.DefaultKeyMap(),
		styles:   styles.NewStyles(),
		authView: views.NewAuthView(cfg.Provider),
	}
}

// SetSender sets the function used to deliver store notifications
func (a *App) SetSender(send func(tea.Msg)) {
	a.send = send
}

// Session returns the active session, or nil when signed out
func (a *App) Session() *views.Session {
	return a.session
}

// CurrentPage returns the page being shown
func (a *App) CurrentPage() Page {
	return a.page
}

// Close ends the active session's store
func (a *App) Close() error {
	if a.session == nil {
		return nil
	}
	return a.session.Store.Close()
}

func (a *App) Init() tea.Cmd {
	// Resume a session left signed in by a previous run
	if id := a.cfg.Provider.CurrentIdentity(); id != nil {
		return a.startSession(id)
	}
	return a.authView.Init()
}

func (a *App) startSession(identity *auth.Identity) tea.Cmd {
	var store *syncstore.Store
	subscribe := a.cfg.Subscribe
	store = syncstore.New(a.cfg.Client, identity, syncstore.Options{
		Logger:    a.cfg.Logger,
		Subscribe: &subscribe,
		Backoff:   a.cfg.Backoff,
		OnChange: func(c syncstore.Collection) {
			if a.send != nil {
				// Send blocks until the event loop takes the message
				go a.send(StoreChangedMsg{store: store, Collection: c})
			}
		},
	})

	a.session = views.NewSession(store)
	a.pages = []tea.Model{
		views.NewDashboardView(a.session),
		views.NewTaskListView(a.session),
		views.NewProjectListView(a.session),
		views.NewTeamView(a.session),
	}
	a.page = a.restorePage()
	a.logger.Info("session started", "user", identity.ID)

	return tea.Batch(
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
			defer cancel()
			return storeStartedMsg{store: store, err: store.Start(ctx)}
		},
		a.resize(),
	)
}

func (a *App) restorePage() Page {
	if a.cfg.Settings == nil {
		return PageDashboard
	}
	value, err := a.cfg.Settings.GetSetting(lastPageSetting)
	if err != nil || value == "" {
		return PageDashboard
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n >= len(pageNames) {
		return PageDashboard
	}
	return Page(n)
}

func (a *App) showPage(p Page) tea.Cmd {
	a.page = p
	if a.cfg.Settings != nil {
		if err := a.cfg.Settings.SetSetting(lastPageSetting, strconv.Itoa(int(p))); err != nil {
			a.logger.Warn("failed to save page", "error", err)
		}
	}
	return a.resize()
}

func (a *App) signOut() tea.Cmd {
	session := a.session
	a.session = nil
	a.pages = nil
	a.authView = views.NewAuthView(a.cfg.Provider)
	provider := a.cfg.Provider

	return tea.Batch(
		func() tea.Msg {
			if session != nil {
				session.Store.Close()
			}
			ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
			defer cancel()
			return signedOutMsg{err: provider.SignOut(ctx)}
		},
		a.authView.Init(),
		a.resize(),
	)
}

// resize replays the window size so a newly shown view lays itself out
func (a *App) resize() tea.Cmd {
	width, height := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: width, Height: height}
	}
}

func (a *App) showNotice(n views.Notify) tea.Cmd {
	a.notice = n
	a.noticeSeq++
	seq := a.noticeSeq
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

func (a *App) capturing() bool {
	if c, ok := a.pages[a.page].(capturer); ok {
		return c.Capturing()
	}
	return false
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.session == nil {
			_, cmd := a.authView.Update(msg)
			return a, cmd
		}
		// Pages get the space below the nav bar and above the status line
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: max(msg.Height-3, 0)}
		var cmds []tea.Cmd
		for _, p := range a.pages {
			_, cmd := p.Update(inner)
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case views.SignedIn:
		return a, a.startSession(msg.Identity)

	case views.Notify:
		return a, a.showNotice(msg)

	case clearNoticeMsg:
		if msg.seq == a.noticeSeq {
			a.notice = views.Notify{}
		}
		return a, nil

	case storeStartedMsg:
		if a.session == nil || msg.store != a.session.Store {
			return a, nil
		}
		var subErr *syncstore.SubscriptionError
		if errors.As(msg.err, &subErr) {
			a.logger.Warn("live updates unavailable", "error", msg.err)
			return a, a.showNotice(views.Notify{Text: "Live updates unavailable, reconnecting", Err: true})
		}
		return a, nil

	case StoreChangedMsg:
		// Notifications from a store that was already closed are dropped
		if a.session == nil || msg.store != a.session.Store {
			return a, nil
		}
		if r, ok := a.pages[PageTasks].(interface{ Refresh() }); ok {
			r.Refresh()
		}
		if msg.Collection == syncstore.CollectionProjects || msg.Collection == syncstore.CollectionTasks {
			if r, ok := a.pages[PageProjects].(interface{ Refresh() }); ok {
				r.Refresh()
			}
		}
		return a, nil

	case signedOutMsg:
		if msg.err != nil {
			a.logger.Warn("sign out failed", "error", msg.err)
		}
		return a, nil

	case tea.KeyMsg:
		if a.session == nil {
			_, cmd := a.authView.Update(msg)
			return a, cmd
		}
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if !a.capturing() {
			switch {
			case key.Matches(msg, a.keys.Quit):
				return a, tea.Quit
			case key.Matches(msg, a.keys.SignOut):
				a.logger.Info("signing out")
				return a, a.signOut()
			case key.Matches(msg, a.keys.Dashboard):
				return a, a.showPage(PageDashboard)
			case key.Matches(msg, a.keys.Tasks):
				return a, a.showPage(PageTasks)
			case key.Matches(msg, a.keys.Projects):
				return a, a.showPage(PageProjects)
			case key.Matches(msg, a.keys.Team):
				return a, a.showPage(PageTeam)
			}
		}
	}

	if a.session == nil {
		_, cmd := a.authView.Update(msg)
		return a, cmd
	}
	_, cmd := a.pages[a.page].Update(msg)
	return a, cmd
}

func (a *App) View() string {
	if a.session == nil {
		return a.authView.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderNav(),
		a.pages[a.page].View(),
		a.renderStatus(),
	)
}

func (a *App) renderNav() string {
	s := a.styles
	tabs := []string{s.Title.Render("taskboard") + "  "}
	for i, name := range pageNames {
		label := strconv.Itoa(i+1) + " " + name
		if Page(i) == a.page {
			tabs = append(tabs, s.NavActive.Render(label))
		} else {
			tabs = append(tabs, s.Nav.Render(label))
		}
	}
	nav := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	if u, ok := a.session.Store.CurrentUser(); ok {
		user := s.TitleMuted.Render(u.Name + " (" + styles.Initials(u.Name) + ")")
		gap := styles.ContentWidth(a.width) - lipgloss.Width(nav) - lipgloss.Width(user)
		if gap > 1 {
			nav = lipgloss.JoinHorizontal(lipgloss.Top, nav, lipgloss.NewStyle().Width(gap).Render(""), user)
		}
	}
	return styles.CenterView(nav, a.width, 1)
}

func (a *App) renderStatus() string {
	s := a.styles
	var line string
	switch {
	case a.notice.Text == "":
		line = s.StatusBar.Render("ctrl+o sign out • q quit")
	case a.notice.Err:
		line = s.StatusBar.Inherit(s.Error).Render(a.notice.Text)
	default:
		line = s.StatusBar.Inherit(s.Success).Render(a.notice.Text)
	}
	return styles.CenterView(line, a.width, 1)
}
