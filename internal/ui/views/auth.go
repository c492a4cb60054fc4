package views

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskboard/internal/auth"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

type authField int

const (
	fieldEmail authField = iota
	fieldPassword
	fieldName
	fieldSubmit
)

// AuthView is the sign-in / sign-up form
type AuthView struct {
	provider auth.Provider
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int

	signUp   bool
	focus    authField
	email    textinput.Model
	password textinput.Model
	name     textinput.Model

	pending bool
	spinner spinner.Model
	err     string
}

type authResultMsg struct {
	identity *auth.Identity
	err      error
}

// NewAuthView creates the form in sign-in mode
func NewAuthView(provider auth.Provider) *AuthView {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "Password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	name := textinput.New()
	name.Placeholder = "Your name"
	name.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	v := &AuthView{
		provider: provider,
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		email:    email,
		password: password,
		name:     name,
		spinner:  sp,
	}
	v.updateFocus()
	return v
}

func (v *AuthView) Init() tea.Cmd {
	return textinput.Blink
}

// Error returns the message currently shown, if any
func (v *AuthView) Error() string { return v.err }

func (v *AuthView) fields() []authField {
	if v.signUp {
		return []authField{fieldEmail, fieldPassword, fieldName, fieldSubmit}
	}
	return []authField{fieldEmail, fieldPassword, fieldSubmit}
}

func (v *AuthView) cycleFocus(dir int) {
	fields := v.fields()
	idx := 0
	for i, f := range fields {
		if f == v.focus {
			idx = i
		}
	}
	v.focus = fields[(idx+dir+len(fields))%len(fields)]
	v.updateFocus()
}

func (v *AuthView) updateFocus() {
	v.email.Blur()
	v.password.Blur()
	v.name.Blur()
	switch v.focus {
	case fieldEmail:
		v.email.Focus()
	case fieldPassword:
		v.password.Focus()
	case fieldName:
		v.name.Focus()
	}
}

func (v *AuthView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case spinner.TickMsg:
		if !v.pending {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case authResultMsg:
		v.pending = false
		if msg.err != nil {
			v.err = auth.Message(msg.err)
			return v, nil
		}
		v.err = ""
		v.password.Reset()
		return v, func() tea.Msg { return SignedIn{Identity: msg.identity} }

	case tea.KeyMsg:
		if v.pending {
			return v, nil
		}
		switch {
		case msg.String() == "ctrl+c":
			return v, tea.Quit
		case msg.String() == "ctrl+n":
			v.signUp = !v.signUp
			v.err = ""
			if v.focus == fieldName && !v.signUp {
				v.focus = fieldSubmit
			}
			v.updateFocus()
			return v, nil
		case key.Matches(msg, v.keys.Tab), msg.String() == "down":
			v.cycleFocus(1)
			return v, nil
		case key.Matches(msg, v.keys.ShiftTab), msg.String() == "up":
			v.cycleFocus(-1)
			return v, nil
		case key.Matches(msg, v.keys.Enter):
			if v.focus == fieldSubmit {
				return v, v.submit()
			}
			v.cycleFocus(1)
			return v, nil
		}
	}

	var cmd tea.Cmd
	switch v.focus {
	case fieldEmail:
		v.email, cmd = v.email.Update(msg)
	case fieldPassword:
		v.password, cmd = v.password.Update(msg)
	case fieldName:
		v.name, cmd = v.name.Update(msg)
	}
	return v, cmd
}

func (v *AuthView) submit() tea.Cmd {
	email := strings.TrimSpace(v.email.Value())
	password := v.password.Value()
	name := strings.TrimSpace(v.name.Value())
	if email == "" || password == "" || (v.signUp && name == "") {
		v.err = "Please fill in every field"
		return nil
	}

	v.pending = true
	v.err = ""
	signUp := v.signUp
	provider := v.provider
	run := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		var id *auth.Identity
		var err error
		if signUp {
			id, err = provider.SignUp(ctx, email, password, name)
		} else {
			id, err = provider.SignIn(ctx, email, password)
		}
		return authResultMsg{identity: id, err: err}
	}
	return tea.Batch(run, v.spinner.Tick)
}

func (v *AuthView) View() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	inputWidth := clamp(contentWidth-6, 20, 40)

	style := func(f authField) lipgloss.Style {
		if v.focus == f {
			return s.InputFocused
		}
		return s.Input
	}

	title, action, toggle := "Sign In", " Sign In ", "ctrl+n: create an account"
	if v.signUp {
		title, action, toggle = "Create Account", " Sign Up ", "ctrl+n: sign in instead"
	}

	rows := []string{
		s.Title.Render("taskboard"),
		s.TitleMuted.Render(title),
		"",
		"Email:",
		style(fieldEmail).Width(inputWidth).Render(v.email.View()),
		"Password:",
		style(fieldPassword).Width(inputWidth).Render(v.password.View()),
	}
	if v.signUp {
		rows = append(rows,
			"Name:",
			style(fieldName).Width(inputWidth).Render(v.name.View()),
		)
	}

	btn := s.Button
	if v.focus == fieldSubmit {
		btn = s.ButtonFocused
	}
	rows = append(rows, "", btn.Render(action))

	switch {
	case v.pending:
		rows = append(rows, "", v.spinner.View()+" Working...")
	case v.err != "":
		rows = append(rows, "", s.Error.Render(v.err))
	}
	rows = append(rows, "", s.TitleMuted.Render("Tab: next • ↵: submit • "+toggle))

	form := lipgloss.JoinVertical(lipgloss.Left, rows...)
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}
