package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// choice is a closed set of values cycled with left/right
type choice struct {
	values []string
	labels []string
	idx    int
}

func (c *choice) move(dir int) {
	if len(c.values) == 0 {
		return
	}
	c.idx = (c.idx + dir + len(c.values)) % len(c.values)
}

func (c *choice) selectValue(v string) {
	for i, val := range c.values {
		if val == v {
			c.idx = i
			return
		}
	}
}

func (c choice) value() string {
	if len(c.values) == 0 {
		return ""
	}
	return c.values[c.idx]
}

func (c choice) label() string {
	if len(c.labels) == 0 {
		return ""
	}
	return c.labels[c.idx]
}

func enumChoice[T ~string](values []T, label func(T) string) choice {
	c := choice{}
	for _, v := range values {
		c.values = append(c.values, string(v))
		c.labels = append(c.labels, label(v))
	}
	return c
}

const (
	formTitle = iota
	formDesc
	formType
	formPriority
	formStatus
	formProject
	formAssignee
	formSave
	formFieldCount
)

// taskForm creates a task, or edits one when original is set
type taskForm struct {
	original *models.Task

	focus    int
	title    textinput.Model
	desc     textarea.Model
	taskType choice
	priority choice
	status   choice
	project  choice
	assignee choice
	err      string
}

func newTaskForm(session *Session, original *models.Task, defaultStatus models.Status) *taskForm {
	title := textinput.New()
	title.Placeholder = "Task title"
	title.CharLimit = 200

	desc := textarea.New()
	desc.Placeholder = "Description"
	desc.CharLimit = 2000
	desc.SetWidth(50)
	desc.SetHeight(3)
	desc.ShowLineNumbers = false

	f := &taskForm{
		original: original,
		title:    title,
		desc:     desc,
		taskType: enumChoice(models.TaskTypes, func(t models.TaskType) string { return string(t) }),
		priority: enumChoice(models.Priorities, func(p models.Priority) string { return string(p) }),
		status:   enumChoice(models.Statuses, models.Status.Label),
		project:  choice{values: []string{""}, labels: []string{"No project"}},
		assignee: choice{values: []string{""}, labels: []string{"Unassigned"}},
	}
	for _, p := range session.Store.Projects() {
		f.project.values = append(f.project.values, p.ID)
		f.project.labels = append(f.project.labels, p.Name)
	}
	for _, u := range session.Store.Users() {
		f.assignee.values = append(f.assignee.values, u.ID)
		f.assignee.labels = append(f.assignee.labels, u.Name)
	}

	defaults := models.TaskDraft{Status: defaultStatus}.WithDefaults()
	f.taskType.selectValue(string(defaults.Type))
	f.priority.selectValue(string(defaults.Priority))
	f.status.selectValue(string(defaults.Status))

	if original != nil {
		f.title.SetValue(original.Title)
		f.desc.SetValue(original.Description)
		f.taskType.selectValue(string(original.Type))
		f.priority.selectValue(string(original.Priority))
		f.status.selectValue(string(original.Status))
		f.project.selectValue(original.ProjectID)
		f.assignee.selectValue(original.AssignedTo)
	}
	f.updateFocus()
	return f
}

func (f *taskForm) choiceAt(field int) *choice {
	switch field {
	case formType:
		return &f.taskType
	case formPriority:
		return &f.priority
	case formStatus:
		return &f.status
	case formProject:
		return &f.project
	case formAssignee:
		return &f.assignee
	}
	return nil
}

func (f *taskForm) updateFocus() {
	f.title.Blur()
	f.desc.Blur()
	switch f.focus {
	case formTitle:
		f.title.Focus()
	case formDesc:
		f.desc.Focus()
	}
}

// update handles a key and reports whether the form should be saved
func (f *taskForm) update(msg tea.KeyMsg, km keys.KeyMap) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, km.Save):
		return true, nil
	case key.Matches(msg, km.Tab):
		f.focus = (f.focus + 1) % formFieldCount
		f.updateFocus()
		return false, nil
	case key.Matches(msg, km.ShiftTab):
		f.focus = (f.focus + formFieldCount - 1) % formFieldCount
		f.updateFocus()
		return false, nil
	}

	if c := f.choiceAt(f.focus); c != nil {
		switch {
		case key.Matches(msg, km.Left):
			c.move(-1)
		case key.Matches(msg, km.Right), msg.String() == " ":
			c.move(1)
		case key.Matches(msg, km.Enter):
			f.focus++
			f.updateFocus()
		}
		return false, nil
	}

	var cmd tea.Cmd
	switch f.focus {
	case formTitle:
		if key.Matches(msg, km.Enter) {
			f.focus++
			f.updateFocus()
			return false, nil
		}
		f.title, cmd = f.title.Update(msg)
	case formDesc:
		f.desc, cmd = f.desc.Update(msg)
	case formSave:
		if key.Matches(msg, km.Enter) {
			return true, nil
		}
	}
	return false, cmd
}

// validate returns the trimmed title or records an error
func (f *taskForm) validate() (string, bool) {
	title := strings.TrimSpace(f.title.Value())
	if title == "" {
		f.err = "Title is required"
		f.focus = formTitle
		f.updateFocus()
		return "", false
	}
	f.err = ""
	return title, true
}

func (f *taskForm) draft(title string) models.TaskDraft {
	return models.TaskDraft{
		Title:       title,
		Description: strings.TrimSpace(f.desc.Value()),
		Type:        models.TaskType(f.taskType.value()),
		Priority:    models.Priority(f.priority.value()),
		Status:      models.Status(f.status.value()),
		ProjectID:   f.project.value(),
		AssignedTo:  f.assignee.value(),
	}
}

// patch holds only the fields that differ from the original task
func (f *taskForm) patch(title string) models.TaskPatch {
	d := f.draft(title)
	o := f.original
	var p models.TaskPatch
	if d.Title != o.Title {
		p.Title = &d.Title
	}
	if d.Description != o.Description {
		p.Description = &d.Description
	}
	if d.Type != o.Type {
		p.Type = &d.Type
	}
	if d.Priority != o.Priority {
		p.Priority = &d.Priority
	}
	if d.Status != o.Status {
		p.Status = &d.Status
	}
	if d.ProjectID != o.ProjectID {
		p.ProjectID = &d.ProjectID
	}
	if d.AssignedTo != o.AssignedTo {
		p.AssignedTo = &d.AssignedTo
	}
	return p
}

func (f *taskForm) view(s *styles.Styles, contentWidth int, pending string) string {
	heading := "New Task"
	if f.original != nil {
		heading = "Edit Task"
	}

	inputWidth := clamp(contentWidth-6, 20, 50)
	f.desc.SetWidth(inputWidth - 4)

	input := func(field int) lipgloss.Style {
		if f.focus == field {
			return s.InputFocused
		}
		return s.Input
	}
	picker := func(field int, label string) string {
		c := f.choiceAt(field)
		value := "‹ " + c.label() + " ›"
		if f.focus == field {
			value = s.ListSelected.Render(value)
		} else {
			value = s.ListItem.Render(value)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, pad(label, 11), value)
	}

	btn := s.Button
	if f.focus == formSave {
		btn = s.ButtonFocused
	}

	rows := []string{
		s.Title.Render(heading),
		"",
		"Title:",
		input(formTitle).Width(inputWidth).Render(f.title.View()),
		"Description:",
		input(formDesc).Render(f.desc.View()),
		"",
		picker(formType, "Type"),
		picker(formPriority, "Priority"),
		picker(formStatus, "Status"),
		picker(formProject, "Project"),
		picker(formAssignee, "Assignee"),
		"",
		btn.Render(" Save "),
	}
	switch {
	case pending != "":
		rows = append(rows, "", pending)
	case f.err != "":
		rows = append(rows, "", s.Error.Render(f.err))
	}
	rows = append(rows, "", s.TitleMuted.Render("Tab: next • ←→: change • Ctrl+S: save • Esc: cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
