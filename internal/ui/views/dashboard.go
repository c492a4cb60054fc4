package views

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/view"
)

// DashboardView summarizes the board. It has no state of its own and
// renders straight from the session.
type DashboardView struct {
	session *Session
	styles  *styles.Styles
	width   int
	height  int
}

func NewDashboardView(session *Session) *DashboardView {
	return &DashboardView{session: session, styles: styles.NewStyles()}
}

func (v *DashboardView) Init() tea.Cmd { return nil }

func (v *DashboardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		v.width = msg.Width
		v.height = msg.Height
	}
	return v, nil
}

func (v *DashboardView) View() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	tasks := v.session.Store.Tasks()

	greeting := "Dashboard"
	if u, ok := v.session.Store.CurrentUser(); ok {
		greeting = "Welcome back, " + u.Name
	}

	stats := view.Summarize(tasks)
	cardWidth := clamp((contentWidth-8)/4-4, 10, 18)
	card := func(label string, value int, color lipgloss.Color) string {
		return s.Card.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
			s.TitleMuted.Render(label),
			s.CardValue.Foreground(color).Render(strconv.Itoa(value)),
		))
	}
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total Tasks", stats.Total, styles.Current.Primary),
		card("Completed", stats.Completed, styles.Current.Success),
		card("In Progress", stats.InProgress, styles.Current.Warning),
		card("High Priority", stats.HighPriority, styles.Current.Error),
	)

	return styles.CenterView(lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(greeting),
		"",
		cards,
		"",
		s.Title.Render("Recent Activity"),
		v.renderRecent(contentWidth),
		"",
		s.Title.Render("Project Progress"),
		v.renderProgress(contentWidth),
	), v.width, v.height)
}

func (v *DashboardView) renderRecent(width int) string {
	s := v.styles
	recent := view.RecentTasks(v.session.Store.Tasks(), view.RecentLimit)
	if len(recent) == 0 {
		return s.TitleMuted.Render("No tasks yet")
	}

	titleWidth := clamp(width-50, 12, 40)
	rows := make([]string, 0, len(recent))
	for _, t := range recent {
		rows = append(rows, s.ListItem.Render(lipgloss.JoinHorizontal(lipgloss.Top,
			styles.TypeIcon(t.Type)+" ",
			pad(truncate(t.Title, titleWidth), titleWidth+2),
			pad(styles.StatusBadge(t.Status), 13),
			pad(truncate(v.session.UserName(t.AssignedTo), 16), 17),
			s.TitleMuted.Render(t.UpdatedAt.Format("Jan 2")),
		)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (v *DashboardView) renderProgress(width int) string {
	s := v.styles
	projects := v.session.Store.Projects()
	if len(projects) == 0 {
		return s.TitleMuted.Render("No projects yet")
	}

	tasks := v.session.Store.Tasks()
	nameWidth := clamp(width/3, 12, 30)
	barWidth := clamp(width-nameWidth-24, 10, 40)
	rows := make([]string, 0, len(projects))
	for _, p := range projects {
		progress := view.ProjectProgress(p, tasks)
		rows = append(rows, s.ListItem.Render(fmt.Sprintf("%-*s %s %3d%%  %s",
			nameWidth, truncate(p.Name, nameWidth),
			styles.ProgressBar(progress.Percent, barWidth),
			progress.Percent,
			s.TitleMuted.Render(fmt.Sprintf("%d/%d", progress.Completed, progress.Total)),
		)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
