package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// taskMode is what the task page is currently showing
type taskMode int

const (
	modeList taskMode = iota
	modeSearch
	modeDetail
	modeForm
	modeConfirmDelete
)

// TaskListView shows the tasks under status tabs with a search box
type TaskListView struct {
	session *Session
	styles  *styles.Styles
	keys    keys.KeyMap

	width  int
	height int

	mode     taskMode
	cursor   int
	scrollY  int
	search   textinput.Model
	detailID string
	form     *taskForm

	deleteID    string
	deleteTitle string
	returnMode  taskMode

	pending bool
	spinner spinner.Model

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

// taskWriteMsg reports the outcome of a task write
type taskWriteMsg struct {
	op  string
	err error
}

// NewTaskListView creates the task page over session
func NewTaskListView(session *Session) *TaskListView {
	search := textinput.New()
	search.Placeholder = "Search tasks..."
	search.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &TaskListView{
		session: session,
		styles:  styles.NewStyles(),
		keys:    keys.DefaultKeyMap(),
		search:  search,
		spinner: sp,
	}
}

func (v *TaskListView) Init() tea.Cmd { return nil }

// Capturing reports whether keys are going to a text field
func (v *TaskListView) Capturing() bool {
	return v.mode == modeSearch || v.mode == modeForm || v.mode == modeConfirmDelete
}

// visible is the current tab and search result
func (v *TaskListView) visible() []models.Task {
	return v.session.Filter.FilteredTasks()
}

func (v *TaskListView) selected() (models.Task, bool) {
	tasks := v.visible()
	if v.cursor < 0 || v.cursor >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[v.cursor], true
}

// clampCursor keeps the cursor on the list after it changed size
func (v *TaskListView) clampCursor() {
	n := len(v.visible())
	if v.cursor >= n {
		v.cursor = max(0, n-1)
	}
	if v.scrollY > v.cursor {
		v.scrollY = v.cursor
	}
}

func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.ensureVisible()
		return v, nil

	case spinner.TickMsg:
		if !v.pending {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case taskWriteMsg:
		return v, v.finishWrite(msg)

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.pending {
			return v, nil
		}

		switch v.mode {
		case modeSearch:
			return v, v.updateSearch(msg)
		case modeForm:
			return v, v.updateForm(msg)
		case modeConfirmDelete:
			return v, v.updateConfirmDelete(msg)
		case modeDetail:
			return v, v.updateDetail(msg)
		default:
			return v, v.updateList(msg)
		}
	}
	return v, nil
}

// Refresh is called after the store replaced a collection
func (v *TaskListView) Refresh() {
	v.clampCursor()
	v.ensureVisible()
}

func (v *TaskListView) updateList(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.visible())-1 {
			v.cursor++
			v.ensureVisible()
		}
	case key.Matches(msg, v.keys.Right), key.Matches(msg, v.keys.Tab):
		v.cycleTab(1)
	case key.Matches(msg, v.keys.Left), key.Matches(msg, v.keys.ShiftTab):
		v.cycleTab(-1)
	case key.Matches(msg, v.keys.Enter):
		if t, ok := v.selected(); ok {
			v.mode = modeDetail
			v.detailID = t.ID
		}
	case key.Matches(msg, v.keys.Search):
		v.mode = modeSearch
		v.search.Focus()
		return textinput.Blink
	case key.Matches(msg, v.keys.Back):
		if v.session.Filter.SearchQuery() != "" {
			v.search.Reset()
			v.session.Filter.SetSearchQuery("")
			v.clampCursor()
		}
	case key.Matches(msg, v.keys.New):
		return v.openForm(nil)
	case key.Matches(msg, v.keys.Edit):
		if t, ok := v.selected(); ok {
			return v.openForm(&t)
		}
	case key.Matches(msg, v.keys.Delete):
		if t, ok := v.selected(); ok {
			v.confirmDelete(t)
		}
	case key.Matches(msg, v.keys.NextStatus):
		if t, ok := v.selected(); ok {
			return v.quickUpdate(t.ID, models.TaskPatch{Status: models.Ptr(t.Status.Next())})
		}
	case key.Matches(msg, v.keys.NextPriority):
		if t, ok := v.selected(); ok {
			return v.quickUpdate(t.ID, models.TaskPatch{Priority: models.Ptr(t.Priority.Next())})
		}
	case key.Matches(msg, v.keys.NextAssignee):
		if t, ok := v.selected(); ok {
			return v.quickUpdate(t.ID, models.TaskPatch{AssignedTo: models.Ptr(v.nextAssignee(t.AssignedTo))})
		}
	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
	}
	return nil
}

func (v *TaskListView) cycleTab(dir int) {
	filters := models.StatusFilters
	current := 0
	for i, f := range filters {
		if f == v.session.Filter.SelectedStatus() {
			current = i
		}
	}
	next := filters[(current+dir+len(filters))%len(filters)]
	_ = v.session.Filter.SetSelectedStatus(next)
	v.cursor = 0
	v.scrollY = 0
}

func (v *TaskListView) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.search.Reset()
		v.session.Filter.SetSearchQuery("")
		v.search.Blur()
		v.mode = modeList
		v.clampCursor()
		return nil
	case key.Matches(msg, v.keys.Enter):
		v.search.Blur()
		v.mode = modeList
		return nil
	}

	var cmd tea.Cmd
	v.search, cmd = v.search.Update(msg)
	v.session.Filter.SetSearchQuery(v.search.Value())
	v.cursor = 0
	v.scrollY = 0
	return cmd
}

func (v *TaskListView) updateDetail(msg tea.KeyMsg) tea.Cmd {
	t, ok := v.session.Store.Task(v.detailID)
	if key.Matches(msg, v.keys.Back) || !ok {
		v.mode = modeList
		v.clampCursor()
		return nil
	}

	switch {
	case key.Matches(msg, v.keys.Edit):
		return v.openForm(&t)
	case key.Matches(msg, v.keys.Delete):
		v.confirmDelete(t)
	case key.Matches(msg, v.keys.NextStatus):
		return v.quickUpdate(t.ID, models.TaskPatch{Status: models.Ptr(t.Status.Next())})
	case key.Matches(msg, v.keys.NextPriority):
		return v.quickUpdate(t.ID, models.TaskPatch{Priority: models.Ptr(t.Priority.Next())})
	case key.Matches(msg, v.keys.NextAssignee):
		return v.quickUpdate(t.ID, models.TaskPatch{AssignedTo: models.Ptr(v.nextAssignee(t.AssignedTo))})
	}
	return nil
}

// nextAssignee cycles unassigned -> each user -> unassigned
func (v *TaskListView) nextAssignee(current string) string {
	ids := []string{""}
	for _, u := range v.session.Store.Users() {
		ids = append(ids, u.ID)
	}
	for i, id := range ids {
		if id == current {
			return ids[(i+1)%len(ids)]
		}
	}
	return ""
}

func (v *TaskListView) openForm(original *models.Task) tea.Cmd {
	status := models.StatusTodo
	if f := v.session.Filter.SelectedStatus(); f != models.FilterAll {
		status = models.Status(f)
	}
	v.returnMode = v.mode
	v.form = newTaskForm(v.session, original, status)
	v.mode = modeForm
	return textinput.Blink
}

func (v *TaskListView) updateForm(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, v.keys.Back) {
		v.form = nil
		v.mode = v.returnMode
		return nil
	}

	submit, cmd := v.form.update(msg, v.keys)
	if !submit {
		return cmd
	}

	title, ok := v.form.validate()
	if !ok {
		return nil
	}

	store := v.session.Store
	if v.form.original == nil {
		draft := v.form.draft(title)
		return v.startWrite(func() taskWriteMsg {
			ctx, cancel := writeCtx()
			defer cancel()
			_, err := store.AddTask(ctx, draft)
			return taskWriteMsg{op: "create", err: err}
		})
	}

	patch := v.form.patch(title)
	if patch.Empty() {
		v.form = nil
		v.mode = v.returnMode
		return nil
	}
	id := v.form.original.ID
	return v.startWrite(func() taskWriteMsg {
		ctx, cancel := writeCtx()
		defer cancel()
		return taskWriteMsg{op: "update", err: store.UpdateTask(ctx, id, patch)}
	})
}

func (v *TaskListView) confirmDelete(t models.Task) {
	v.returnMode = v.mode
	v.deleteID = t.ID
	v.deleteTitle = t.Title
	v.mode = modeConfirmDelete
}

func (v *TaskListView) updateConfirmDelete(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		store, id := v.session.Store, v.deleteID
		return v.startWrite(func() taskWriteMsg {
			ctx, cancel := writeCtx()
			defer cancel()
			return taskWriteMsg{op: "delete", err: store.DeleteTask(ctx, id)}
		})
	case "n", "N", "esc":
		v.mode = v.returnMode
	}
	return nil
}

func (v *TaskListView) quickUpdate(id string, patch models.TaskPatch) tea.Cmd {
	store := v.session.Store
	return v.startWrite(func() taskWriteMsg {
		ctx, cancel := writeCtx()
		defer cancel()
		return taskWriteMsg{op: "quick", err: store.UpdateTask(ctx, id, patch)}
	})
}

// startWrite runs a store write off the update loop. The task list
// changes only once the change feed reports the write.
func (v *TaskListView) startWrite(run func() taskWriteMsg) tea.Cmd {
	v.pending = true
	return tea.Batch(func() tea.Msg { return run() }, v.spinner.Tick)
}

func (v *TaskListView) finishWrite(msg taskWriteMsg) tea.Cmd {
	v.pending = false

	switch msg.op {
	case "create", "update":
		if msg.err != nil {
			if v.form != nil {
				v.form.err = errorText(msg.err)
			}
			return notify("Could not save the task", msg.err)
		}
		v.form = nil
		v.mode = v.returnMode
		if msg.op == "create" {
			return notify("Task created", nil)
		}
		return notify("Task updated", nil)

	case "delete":
		v.mode = modeList
		v.detailID = ""
		if msg.err != nil {
			return notify("Could not delete the task", msg.err)
		}
		return notify("Task deleted", nil)

	default:
		if msg.err != nil {
			return notify("Could not update the task", msg.err)
		}
		return nil
	}
}

func (v *TaskListView) ensureVisible() {
	visibleItems := v.visibleItems()
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	} else if v.cursor >= v.scrollY+visibleItems {
		v.scrollY = v.cursor - visibleItems + 1
	}
}

// visibleItems is how many two-line task rows fit on screen
func (v *TaskListView) visibleItems() int {
	return max((v.height-12)/2, 1)
}

// View renders the view
func (v *TaskListView) View() string {
	contentWidth := styles.ContentWidth(v.width)

	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	var body string
	switch v.mode {
	case modeForm:
		body = lipgloss.Place(contentWidth, v.height-4,
			lipgloss.Center, lipgloss.Center,
			v.form.view(v.styles, contentWidth, v.pendingText()),
		)
	case modeConfirmDelete:
		body = v.renderDeleteConfirm()
	case modeDetail:
		body = v.renderDetail()
	default:
		body = lipgloss.JoinVertical(lipgloss.Left,
			v.renderTabs(),
			v.renderSearch(),
			"",
			v.renderList(),
			v.renderHelp(),
		)
	}
	return styles.CenterView(body, v.width, v.height)
}

func (v *TaskListView) pendingText() string {
	if !v.pending {
		return ""
	}
	return v.spinner.View() + " Saving..."
}

func (v *TaskListView) renderTabs() string {
	s := v.styles
	counts := v.session.Filter.StatusCounts()
	selected := v.session.Filter.SelectedStatus()

	tabs := make([]string, 0, len(models.StatusFilters))
	for _, f := range models.StatusFilters {
		label := fmt.Sprintf("%s (%d)", f.Label(), counts[f])
		if f == selected {
			tabs = append(tabs, s.TabActive.Render(label))
		} else {
			tabs = append(tabs, s.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (v *TaskListView) renderSearch() string {
	s := v.styles
	style := s.Input
	if v.mode == modeSearch {
		style = s.InputFocused
	}
	width := clamp(styles.ContentWidth(v.width)-8, 10, 40)
	return style.Width(width).Render(v.search.View())
}

func (v *TaskListView) renderList() string {
	s := v.styles
	tasks := v.visible()

	if len(tasks) == 0 {
		if v.session.Filter.SearchQuery() != "" {
			return s.TitleMuted.Render("No tasks match your search.")
		}
		return s.TitleMuted.Render("No tasks. Press 'n' to create one.")
	}

	endIdx := min(v.scrollY+v.visibleItems(), len(tasks))
	items := make([]string, 0, endIdx-v.scrollY)
	for i := v.scrollY; i < endIdx; i++ {
		items = append(items, v.renderTaskItem(tasks[i], i == v.cursor && v.mode == modeList))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TaskListView) renderTaskItem(task models.Task, selected bool) string {
	s := v.styles
	width := max(styles.ContentWidth(v.width)-4, 20)

	titleLine := styles.TypeIcon(task.Type) + " " + task.Title
	meta := strings.Join([]string{
		styles.StatusBadge(task.Status),
		styles.PriorityBadge(task.Priority),
		v.session.UserName(task.AssignedTo),
		v.session.ProjectName(task.ProjectID),
	}, "  ")

	style := s.ListItem
	if selected {
		style = s.ListSelected
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		style.Width(width).Render(titleLine),
		style.Width(width).Render(meta),
	)
}

func (v *TaskListView) renderDetail() string {
	s := v.styles
	task, ok := v.session.Store.Task(v.detailID)
	if !ok {
		return lipgloss.JoinVertical(lipgloss.Left,
			s.TitleMuted.Render("This task no longer exists."),
			helpLine(s, "esc", "back"),
		)
	}

	textWidth := clamp(styles.ContentWidth(v.width)-10, 20, 70)
	label := s.TitleMuted
	desc := task.Description
	if desc == "" {
		desc = s.TitleMuted.Render("No description")
	}

	grid := lipgloss.JoinHorizontal(lipgloss.Top,
		pad(lipgloss.JoinVertical(lipgloss.Left,
			label.Render("Type"), styles.TypeIcon(task.Type)+" "+string(task.Type), "",
			label.Render("Status"), styles.StatusBadge(task.Status), "",
			label.Render("Created"), task.CreatedAt.Format("Jan 2, 2006 3:04 PM"),
		), textWidth/2),
		lipgloss.JoinVertical(lipgloss.Left,
			label.Render("Priority"), styles.PriorityBadge(task.Priority), "",
			label.Render("Assignee"), v.session.UserName(task.AssignedTo), "",
			label.Render("Updated"), task.UpdatedAt.Format("Jan 2, 2006 3:04 PM"),
		),
	)

	rows := []string{
		s.Title.MarginBottom(1).Render(task.Title),
		label.Render("Description"),
		lipgloss.NewStyle().Width(textWidth).Render(desc),
		"",
		label.Render("Project"),
		v.session.ProjectName(task.ProjectID),
		"",
		grid,
	}
	if p := v.pendingText(); p != "" {
		rows = append(rows, "", p)
	}
	rows = append(rows, helpLine(s,
		"e", "edit", "s", "status", "p", "priority", "a", "assignee", "d", "delete", "esc", "back"))

	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (v *TaskListView) renderDeleteConfirm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Task?"),
		"",
		s.TitleMuted.Render(strconv.Quote(v.deleteTitle)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
		"",
		v.pendingText(),
	)

	return lipgloss.Place(contentWidth, v.height-4,
		lipgloss.Center, lipgloss.Center,
		content,
	)
}

func (v *TaskListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 60 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	pairs := []string{"↵", "view", "n", "new", "e", "edit", "d", "del", "s", "status", "/", "search", "←→", "tab"}
	if p := v.pendingText(); p != "" {
		return v.styles.Help.Render(p)
	}
	return helpLine(v.styles, pairs...)
}

func (v *TaskListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↵") + "      view task",
		s.HelpKey.Render("n") + "      new task",
		s.HelpKey.Render("e") + "      edit task",
		s.HelpKey.Render("d") + "      delete task",
		s.HelpKey.Render("s") + "      next status",
		s.HelpKey.Render("p") + "      next priority",
		s.HelpKey.Render("/") + "      search",
		s.HelpKey.Render("←→") + "     status tab",
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
