// Package tui is a terminal front-end for the activity sign-up client. It
// draws a view.Page and feeds keyboard input into the page's forms.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nomis52/signup/controller"
	"github.com/nomis52/signup/logging"
	"github.com/nomis52/signup/view"
)

const diagnosticsLines = 8

// Controller is the part of controller.ActivityClient the terminal UI drives.
type Controller interface {
	LoadActivities(ctx context.Context) error
	SubmitSignup(ctx context.Context, activity, email string) error
	SubmitDeregister(ctx context.Context, activity, email string) error
}

var _ Controller = (*controller.ActivityClient)(nil)

// Changes coalesces page change notifications into redraws.
type Changes struct {
	ch chan struct{}
}

// NewChanges creates a Changes.
func NewChanges() *Changes {
	return &Changes{ch: make(chan struct{}, 1)}
}

// Notify is a view.NewPage onChange hook. It never blocks.
func (c *Changes) Notify() {
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

func (c *Changes) wait() tea.Cmd {
	return func() tea.Msg {
		<-c.ch
		return pageChangedMsg{}
	}
}

type (
	pageChangedMsg struct{}
	loadedMsg      struct{ err error }
	submittedMsg   struct {
		form string
		err  error
	}
)

type field int

const (
	fieldSignupEmail field = iota
	fieldSignupActivity
	fieldDeregisterEmail
	fieldDeregisterActivity
	numFields
)

// pane is one of the two mutation forms.
type pane struct {
	name   string
	title  string
	button string
	form   view.PageForm
	email  textinput.Model
	submit func(ctx context.Context, activity, email string) error
}

// Model is the bubbletea model of the sign-up screen.
type Model struct {
	ctx       context.Context
	ctrl      Controller
	page      *view.Page
	changes   *Changes
	collector *logging.LogCollector
	logger    *slog.Logger

	panes           [2]*pane
	focus           field
	status          string
	loading         bool
	showDiagnostics bool
	width           int
}

// Option configures a Model.
type Option func(*Model)

// WithLogCollector enables the diagnostics pane, toggled with F2.
func WithLogCollector(c *logging.LogCollector) Option {
	return func(m *Model) {
		m.collector = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// New creates the model. page must have been created with changes.Notify as
// its onChange hook so background updates, like a message hiding, are drawn.
func New(ctx context.Context, ctrl Controller, page *view.Page, changes *Changes, opts ...Option) *Model {
	m := &Model{
		ctx:     ctx,
		ctrl:    ctrl,
		page:    page,
		changes: changes,
		logger:  slog.Default(),
		loading: true,
	}
	m.panes[0] = newPane("signup", "Sign Up for an Activity", "Sign Up", page.Signup(), ctrl.SubmitSignup)
	m.panes[1] = newPane("deregister", "Unregister from an Activity", "Unregister", page.Deregister(), ctrl.SubmitDeregister)
	for _, opt := range opts {
		opt(m)
	}
	m.panes[0].email.Focus()
	return m
}

func newPane(name, title, button string, form view.PageForm, submit func(context.Context, string, string) error) *pane {
	input := textinput.New()
	input.Placeholder = "your-email@mergington.edu"
	input.CharLimit = 254
	input.Width = 32
	return &pane{name: name, title: title, button: button, form: form, email: input, submit: submit}
}

// Run runs the program until the user quits or ctx is cancelled.
func Run(ctx context.Context, m *Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.changes.wait(), m.load())
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.ctrl.LoadActivities(m.ctx)}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case pageChangedMsg:
		m.syncInputs()
		return m, m.changes.wait()

	case loadedMsg:
		m.loading = false
		if msg.err != nil && !errors.Is(msg.err, controller.ErrSuperseded) {
			m.logger.Debug("activity load failed", "error", msg.err)
		}
		return m, nil

	case submittedMsg:
		switch {
		case errors.Is(msg.err, controller.ErrSubmissionInProgress):
			m.status = "A submission is already in progress"
		case errors.Is(msg.err, controller.ErrClosed):
			m.status = "The client is shutting down"
		}
		m.syncInputs()
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		return tea.Quit
	case "tab":
		return m.setFocus((m.focus + 1) % numFields)
	case "shift+tab":
		return m.setFocus((m.focus + numFields - 1) % numFields)
	case "ctrl+r":
		m.loading = true
		m.status = ""
		return m.load()
	case "f2":
		m.showDiagnostics = !m.showDiagnostics
		return nil
	case "enter":
		return m.submit(m.focusedPane())
	}

	p := m.focusedPane()
	if m.focus == fieldSignupActivity || m.focus == fieldDeregisterActivity {
		switch msg.String() {
		case "up", "left", "k":
			m.cycleActivity(p, -1)
		case "down", "right", "j", " ":
			m.cycleActivity(p, 1)
		}
		return nil
	}

	var cmd tea.Cmd
	p.email, cmd = p.email.Update(msg)
	if v := p.email.Value(); v != p.form.Form.Email() {
		p.form.Form.SetEmail(v)
	}
	return cmd
}

func (m *Model) focusedPane() *pane {
	if m.focus < fieldDeregisterEmail {
		return m.panes[0]
	}
	return m.panes[1]
}

func (m *Model) setFocus(f field) tea.Cmd {
	m.focus = f
	var cmd tea.Cmd
	for i, p := range m.panes {
		if (i == 0 && f == fieldSignupEmail) || (i == 1 && f == fieldDeregisterEmail) {
			cmd = p.email.Focus()
		} else {
			p.email.Blur()
		}
	}
	return cmd
}

// cycleActivity moves the selection by delta, wrapping around. From the
// placeholder, moving forward selects the first activity.
func (m *Model) cycleActivity(p *pane, delta int) {
	names := p.form.Selector.Names()
	if len(names) == 0 {
		return
	}
	idx := -1
	for i, n := range names {
		if n == p.form.Selector.Selected() {
			idx = i
			break
		}
	}
	switch {
	case idx == -1 && delta > 0:
		idx = 0
	case idx == -1:
		idx = len(names) - 1
	default:
		idx = (idx + delta + len(names)) % len(names)
	}
	if err := p.form.Selector.Select(names[idx]); err != nil {
		m.logger.Debug("failed to select activity", "activity", names[idx], "error", err)
	}
}

func (m *Model) submit(p *pane) tea.Cmd {
	email := p.email.Value()
	activity := p.form.Selector.Selected()
	if strings.TrimSpace(email) == "" || activity == "" {
		m.status = "Enter an email and choose an activity"
		return nil
	}
	if !p.form.Form.Enabled() {
		m.status = "A submission is already in progress"
		return nil
	}

	m.status = ""
	ctx := m.ctx
	return func() tea.Msg {
		return submittedMsg{form: p.name, err: p.submit(ctx, activity, email)}
	}
}

// syncInputs copies form state the controller changed, such as a reset, into
// the text inputs.
func (m *Model) syncInputs() {
	for _, p := range m.panes {
		if email := p.form.Form.Email(); email != p.email.Value() {
			p.email.SetValue(email)
		}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	snap := m.page.Snapshot()

	var b strings.Builder
	b.WriteString(headerStyle.Render("Mergington High School · Extracurricular Activities"))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Available Activities"))
	b.WriteString("\n")
	b.WriteString(m.renderList(snap))
	b.WriteString("\n")

	forms := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderPane(m.panes[0], snap.Signup, fieldSignupEmail),
		m.renderPane(m.panes[1], snap.Deregister, fieldDeregisterEmail),
	)
	b.WriteString(forms)
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("tab: next field • ↑/↓: choose activity • enter: submit • ctrl+r: refresh • f2: diagnostics • esc: quit"))

	if m.showDiagnostics {
		b.WriteString("\n")
		b.WriteString(m.renderDiagnostics())
	}
	return b.String()
}

func (m *Model) renderList(snap view.PageSnapshot) string {
	if snap.Failure != "" {
		return errorStyle.Render(snap.Failure)
	}
	if len(snap.Cards) == 0 {
		if m.loading {
			return "Loading activities..."
		}
		return "No activities available."
	}

	cards := make([]string, 0, len(snap.Cards))
	for _, c := range snap.Cards {
		lines := []string{
			cardTitleStyle.Render(c.Name),
			c.Description,
			labelStyle.Render("Schedule:") + " " + c.Schedule,
			labelStyle.Render("Availability:") + " " + c.Availability(),
		}
		if len(c.Participants) > 0 {
			lines = append(lines, labelStyle.Render("Participants:")+" "+strings.Join(c.Participants, ", "))
		}
		style := cardStyle
		if m.width > 4 {
			style = style.Width(m.width - 4)
		}
		cards = append(cards, style.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func (m *Model) renderPane(p *pane, fs view.FormSnapshot, emailField field) string {
	activityField := emailField + 1
	marker := func(f field) string {
		if m.focus == f {
			return focusMarker + " "
		}
		return "  "
	}

	selected := fs.Selected
	if selected == "" && len(fs.Options) > 0 {
		selected = fs.Options[0].Label
	}

	button := buttonStyle.Render(p.button)
	if !fs.Enabled {
		button = disabledButtonStyle.Render(p.button)
	}

	lines := []string{
		sectionStyle.Render(p.title),
		marker(emailField) + labelStyle.Render("Student Email:") + " " + p.email.View(),
		marker(activityField) + labelStyle.Render("Select Activity:") + " ‹ " + selected + " ›",
		"  " + button,
	}
	if msg := fs.Message; msg.Visible {
		style := successStyle
		if msg.Kind == view.KindError {
			style = errorStyle
		}
		lines = append(lines, style.Render(msg.Text))
	}

	style := formStyle
	if m.focus == emailField || m.focus == activityField {
		style = focusedFormStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderDiagnostics() string {
	if m.collector == nil {
		return helpStyle.Render("diagnostics are not being captured")
	}

	type line struct {
		entry   logging.LogEntry
		channel string
	}
	var lines []line
	for channel, entries := range m.collector.All() {
		for _, e := range entries {
			lines = append(lines, line{entry: e, channel: channel})
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].entry.Time.Before(lines[j].entry.Time)
	})
	if len(lines) > diagnosticsLines {
		lines = lines[len(lines)-diagnosticsLines:]
	}

	out := []string{sectionStyle.Render("Diagnostics")}
	for _, l := range lines {
		text := fmt.Sprintf("%s %-5s [%s] %s", l.entry.Time.Format("15:04:05"), l.entry.Level, l.channel, l.entry.Message)
		if detail, ok := l.entry.Attributes["detail"]; ok {
			text += fmt.Sprintf(" detail=%v", detail)
		}
		if err, ok := l.entry.Attributes["error"]; ok {
			text += fmt.Sprintf(" error=%v", err)
		}
		out = append(out, text)
	}
	if len(lines) == 0 {
		out = append(out, helpStyle.Render("no entries"))
	}
	return strings.Join(out, "\n")
}
