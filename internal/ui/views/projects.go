package views

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/view"
)

type projectItem struct {
	project  models.Project
	progress view.Progress
}

func (i projectItem) Title() string       { return i.project.Name }
func (i projectItem) Description() string { return i.project.Description }
func (i projectItem) FilterValue() string { return i.project.Name }

type projectDelegate struct {
	styles *styles.Styles
	width  int
}

func (d projectDelegate) Height() int                               { return 3 }
func (d projectDelegate) Spacing() int                              { return 1 }
func (d projectDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d projectDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	p, ok := item.(projectItem)
	if !ok {
		return
	}

	selected := index == m.Index()
	width := max(d.width-4, 20)

	var titleStyle, descStyle lipgloss.Style
	if selected {
		titleStyle = d.styles.ListSelected.Width(width)
		descStyle = d.styles.ListSelected.Foreground(styles.Current.ForegroundDim).Width(width)
	} else {
		titleStyle = d.styles.ListItem.Width(width)
		descStyle = d.styles.ListItem.Foreground(styles.Current.ForegroundDim).Width(width)
	}

	desc := p.Description()
	if desc == "" {
		desc = "No description"
	}
	bar := fmt.Sprintf("%s %3d%%  %d/%d tasks",
		styles.ProgressBar(p.progress.Percent, clamp(width-24, 10, 40)),
		p.progress.Percent, p.progress.Completed, p.progress.Total)

	fmt.Fprintf(w, "%s\n%s\n%s",
		titleStyle.Render(p.Title()),
		descStyle.Render(truncate(desc, width-2)),
		descStyle.Render(bar),
	)
}

// projectWriteMsg reports the outcome of creating a project
type projectWriteMsg struct {
	name string
	err  error
}

// ProjectListView lists projects with their progress and creates new ones
type ProjectListView struct {
	session  *Session
	list     list.Model
	delegate *projectDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int

	creating bool
	newName  textinput.Model
	newDesc  textinput.Model
	focusIdx int // 0=name, 1=desc, 2=confirm
	formErr  string

	// detailID is the project being shown, empty for the list
	detailID string

	pending bool
	spinner spinner.Model

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

func NewProjectListView(session *Session) *ProjectListView {
	s := styles.NewStyles()

	newName := textinput.New()
	newName.Placeholder = "Project name"
	newName.CharLimit = 100

	newDesc := textinput.New()
	newDesc.Placeholder = "Description (optional)"
	newDesc.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Setup custom delegate
	delegate := &projectDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Projects"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	v := &ProjectListView{
		session:  session,
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
		newName:  newName,
		newDesc:  newDesc,
		spinner:  sp,
	}
	v.Refresh()
	return v
}

func (v *ProjectListView) Init() tea.Cmd { return nil }

// Capturing reports whether keys are going to a text field
func (v *ProjectListView) Capturing() bool {
	return v.creating || v.list.FilterState() == list.Filtering
}

// Refresh rebuilds the list items from the store
func (v *ProjectListView) Refresh() {
	tasks := v.session.Store.Tasks()
	projects := v.session.Store.Projects()
	items := make([]list.Item, len(projects))
	for i, p := range projects {
		items[i] = projectItem{project: p, progress: view.ProjectProgress(p, tasks)}
	}
	v.list.SetItems(items)
}

func (v *ProjectListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		// Use content width (capped at MaxWidth) for internal layout
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-8)
		return v, nil

	case spinner.TickMsg:
		if !v.pending {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case projectWriteMsg:
		v.pending = false
		if msg.err != nil {
			v.formErr = errorText(msg.err)
			return v, notify("Could not create the project", msg.err)
		}
		v.creating = false
		v.Refresh()
		return v, notify(fmt.Sprintf("Project %q created", msg.name), nil)

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.pending {
			return v, nil
		}

		if v.creating {
			return v.updateCreating(msg)
		}

		if v.detailID != "" {
			if key.Matches(msg, v.keys.Back) {
				v.detailID = ""
			}
			return v, nil
		}

		if v.list.FilterState() != list.Filtering {
			switch {
			case key.Matches(msg, v.keys.New):
				v.creating = true
				v.focusIdx = 0
				v.formErr = ""
				v.newName.Reset()
				v.newDesc.Reset()
				v.updateFocus()
				return v, textinput.Blink
			case key.Matches(msg, v.keys.Help):
				v.showHelpPopup = true
				return v, nil
			case key.Matches(msg, v.keys.Enter):
				if item, ok := v.list.SelectedItem().(projectItem); ok {
					v.detailID = item.project.ID
				}
				return v, nil
			}
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *ProjectListView) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.creating = false
		return v, nil

	case key.Matches(msg, v.keys.Save):
		return v, v.create()

	case key.Matches(msg, v.keys.ShiftTab):
		v.focusIdx = (v.focusIdx + 2) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Tab):
		v.focusIdx = (v.focusIdx + 1) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.focusIdx < 2 {
			v.focusIdx++
			v.updateFocus()
			return v, nil
		}
		return v, v.create()
	}

	var cmd tea.Cmd
	switch v.focusIdx {
	case 0:
		v.newName, cmd = v.newName.Update(msg)
	case 1:
		v.newDesc, cmd = v.newDesc.Update(msg)
	}
	return v, cmd
}

// create adds the project and then reloads projects explicitly, since
// projects have no standing change feed by default.
func (v *ProjectListView) create() tea.Cmd {
	name := strings.TrimSpace(v.newName.Value())
	if name == "" {
		v.formErr = "Name is required"
		v.focusIdx = 0
		v.updateFocus()
		return nil
	}
	draft := models.ProjectDraft{Name: name, Description: strings.TrimSpace(v.newDesc.Value())}

	v.pending = true
	v.formErr = ""
	store := v.session.Store
	run := func() tea.Msg {
		ctx, cancel := writeCtx()
		defer cancel()
		if _, err := store.AddProject(ctx, draft); err != nil {
			return projectWriteMsg{name: name, err: err}
		}
		return projectWriteMsg{name: name, err: store.LoadProjects(ctx)}
	}
	return tea.Batch(run, v.spinner.Tick)
}

func (v *ProjectListView) updateFocus() {
	v.newName.Blur()
	v.newDesc.Blur()
	switch v.focusIdx {
	case 0:
		v.newName.Focus()
	case 1:
		v.newDesc.Focus()
	}
}

// View renders the view
func (v *ProjectListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.creating {
		return v.renderCreateForm()
	}

	if v.detailID != "" {
		return v.renderDetail()
	}

	if len(v.list.Items()) == 0 {
		return v.renderEmpty()
	}

	content := v.list.View() + "\n" + v.renderHelp()
	return styles.CenterView(content, v.width, v.height)
}

func (v *ProjectListView) renderEmpty() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Render("No Projects"),
		"",
		s.TitleMuted.Render("Press 'n' to create your first project"),
		"",
		s.ButtonPrimary.Render(" New Project "),
	)

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height-4,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderDetail() string {
	s := v.styles
	var project models.Project
	found := false
	for _, p := range v.session.Store.Projects() {
		if p.ID == v.detailID {
			project, found = p, true
		}
	}
	if !found {
		return styles.CenterView(lipgloss.JoinVertical(lipgloss.Left,
			s.TitleMuted.Render("This project no longer exists."),
			helpLine(s, "esc", "back"),
		), v.width, v.height)
	}

	tasks := v.session.Store.Tasks()
	progress := view.ProjectProgress(project, tasks)
	width := styles.ContentWidth(v.width)

	rows := []string{
		s.Title.Render(project.Name),
		s.TitleMuted.Render(project.Description),
		"",
		fmt.Sprintf("%s %d%%  %d done, %d remaining",
			styles.ProgressBar(progress.Percent, clamp(width-30, 10, 40)),
			progress.Percent, progress.Completed, progress.Remaining()),
		"",
	}

	members := make(map[string]struct{}, len(project.TaskIDs))
	for _, id := range project.TaskIDs {
		members[id] = struct{}{}
	}
	titleWidth := clamp(width-40, 12, 50)
	count := 0
	for _, t := range tasks {
		if _, ok := members[t.ID]; !ok {
			continue
		}
		count++
		rows = append(rows, s.ListItem.Render(lipgloss.JoinHorizontal(lipgloss.Top,
			styles.TypeIcon(t.Type)+" ",
			pad(truncate(t.Title, titleWidth), titleWidth+2),
			pad(styles.StatusBadge(t.Status), 13),
			v.session.UserName(t.AssignedTo),
		)))
	}
	if count == 0 {
		rows = append(rows, s.TitleMuted.Render("No tasks in this project yet"))
	}
	rows = append(rows, "", helpLine(s, "esc", "back"))

	return styles.CenterView(lipgloss.JoinVertical(lipgloss.Left, rows...), v.width, v.height)
}

func (v *ProjectListView) renderCreateForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	nameStyle := s.Input
	descStyle := s.Input
	btnStyle := s.Button

	switch v.focusIdx {
	case 0:
		nameStyle = s.InputFocused
	case 1:
		descStyle = s.InputFocused
	case 2:
		btnStyle = s.ButtonFocused
	}

	// Dynamic input width based on content width
	inputWidth := clamp(contentWidth-6, 20, 50)

	rows := []string{
		s.Title.Render("New Project"),
		"",
		"Name:",
		nameStyle.Width(inputWidth).Render(v.newName.View()),
		"",
		"Description:",
		descStyle.Width(inputWidth).Render(v.newDesc.View()),
		"",
		btnStyle.Render(" Create "),
	}
	switch {
	case v.pending:
		rows = append(rows, "", v.spinner.View()+" Saving...")
	case v.formErr != "":
		rows = append(rows, "", s.Error.Render(v.formErr))
	}
	rows = append(rows, "", s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"))

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height-4,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return helpLine(v.styles, "↵", "open", "n", "new", "/", "filter", "q", "quit")
}

func (v *ProjectListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↵") + "      open project",
		s.HelpKey.Render("n") + "      new project",
		s.HelpKey.Render("/") + "      filter",
		s.HelpKey.Render("1-4") + "    switch page",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.Panel.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}
