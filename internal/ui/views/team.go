package views

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/view"
)

// TeamView lists the team members with their task counts
type TeamView struct {
	session *Session
	styles  *styles.Styles
	keys    keys.KeyMap
	cursor  int
	width   int
	height  int
}

func NewTeamView(session *Session) *TeamView {
	return &TeamView{session: session, styles: styles.NewStyles(), keys: keys.DefaultKeyMap()}
}

func (v *TeamView) Init() tea.Cmd { return nil }

func (v *TeamView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
	case tea.KeyMsg:
		n := len(v.session.Store.Users())
		switch {
		case key.Matches(msg, v.keys.Up):
			if v.cursor > 0 {
				v.cursor--
			}
		case key.Matches(msg, v.keys.Down):
			if v.cursor < n-1 {
				v.cursor++
			}
		}
	}
	return v, nil
}

func (v *TeamView) View() string {
	s := v.styles
	users := v.session.Store.Users()
	tasks := v.session.Store.Tasks()
	v.cursor = clamp(v.cursor, 0, max(len(users)-1, 0))

	rows := []string{s.Title.Render("Team"), ""}
	if len(users) == 0 {
		rows = append(rows, s.TitleMuted.Render("No team members yet"))
	}

	current, _ := v.session.Store.CurrentUser()
	width := max(styles.ContentWidth(v.width)-8, 30)
	for i, u := range users {
		stats := view.MemberStats(u.ID, tasks)
		name := u.Name
		if u.ID == current.ID {
			name += " (you)"
		}
		avatar := lipgloss.NewStyle().
			Foreground(styles.Current.Background).
			Background(styles.Current.Primary).
			Bold(true).
			Render(fmt.Sprintf(" %-2s ", styles.Initials(u.Name)))

		body := lipgloss.JoinVertical(lipgloss.Left,
			s.Title.Render(name),
			s.TitleMuted.Render(fmt.Sprintf("%d tasks • %d in progress • %d done • %d high priority",
				stats.Total, stats.InProgress, stats.Completed, stats.HighPriority)),
		)
		card := s.Card
		if i == v.cursor {
			card = card.BorderForeground(styles.Current.BorderFocus)
		}
		rows = append(rows, card.Width(width).Render(
			lipgloss.JoinHorizontal(lipgloss.Center, avatar, "  ", body),
		))
	}
	rows = append(rows, helpLine(s, "↑↓", "move", "1-4", "pages", "q", "quit"))

	return styles.CenterView(lipgloss.JoinVertical(lipgloss.Left, rows...), v.width, v.height)
}
