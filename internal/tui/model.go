// Package tui is the terminal front end for a sequencer run: task entry, a
// live step log and the option picker at the decision gate.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rendis/conclave/internal/engine"
	"github.com/rendis/conclave/internal/streaming"
	"github.com/rendis/conclave/pkg/schema"
)

// mode is which screen the model is showing.
type mode int

const (
	modeEntry    mode = iota // typing the task
	modeWatching             // run in flight
	modeDeciding             // gate open, picking an option
	modeFinished             // run ended; read only
)

// eventMsg wraps a hub notification.
type eventMsg streaming.StreamEvent

// streamClosedMsg signals the hub subscription ended.
type streamClosedMsg struct{}

// submitMsg starts a run for a task given up front.
type submitMsg struct{ task string }

// Model is the bubbletea model for `conclave play`.
type Model struct {
	ctx    context.Context
	runner engine.Runner
	events <-chan streaming.StreamEvent
	title  string

	mode   mode
	state  schema.RunState
	cursor int
	err    error

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	autoTask string
}

// NewModel builds a Model. events may be nil, in which case the model only
// refreshes after its own commands.
func NewModel(ctx context.Context, runner engine.Runner, events <-chan streaming.StreamEvent, title, task string) Model {
	ti := textinput.New()
	ti.Placeholder = "Describe a task for the team"
	ti.CharLimit = 500
	ti.Width = 60
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		ctx:      ctx,
		runner:   runner,
		events:   events,
		title:    title,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		autoTask: task,
		state:    runner.Snapshot(),
	}
}

// State returns the last snapshot the model rendered.
func (m Model) State() schema.RunState { return m.state }

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, m.waitForEvent()}
	if m.autoTask != "" {
		task := m.autoTask
		cmds = append(cmds, func() tea.Msg { return submitMsg{task: task} })
	}
	return tea.Batch(cmds...)
}

func (m Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(e)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-8, 3)
		m.ready = true
		m.refreshLog()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.sync()
		return m, m.waitForEvent()

	case streamClosedMsg:
		m.events = nil
		return m, nil

	case submitMsg:
		m.input.SetValue(msg.task)
		return m.start()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.mode == modeWatching {
			m.sync()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.mode {
	case modeEntry:
		if msg.Type == tea.KeyEnter {
			return m.start()
		}
		if msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case modeDeciding:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if d := m.pending(); d != nil && m.cursor < len(d.Options)-1 {
				m.cursor++
			}
		case "enter":
			return m.choose(m.cursor)
		default:
			if len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9' {
				return m.choose(int(msg.Runes[0] - '1'))
			}
		}
		return m, nil

	case modeFinished:
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "n", "enter":
			m.mode = modeEntry
			m.err = nil
			m.input.SetValue("")
			m.input.Focus()
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) start() (tea.Model, tea.Cmd) {
	task := m.input.Value()
	if _, err := m.runner.Start(m.ctx, task); err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	m.cursor = 0
	m.input.Blur()
	m.mode = modeWatching
	m.sync()
	return m, m.spinner.Tick
}

func (m Model) choose(choice int) (tea.Model, tea.Cmd) {
	if err := m.runner.Choose(m.ctx, choice); err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	m.mode = modeWatching
	m.sync()
	return m, m.spinner.Tick
}

// sync pulls a fresh snapshot and derives the mode from it.
func (m *Model) sync() {
	m.state = m.runner.Snapshot()
	switch {
	case m.mode == modeEntry:
	case m.state.PendingDecision != nil:
		if m.mode != modeDeciding {
			m.cursor = 0
		}
		m.mode = modeDeciding
	case m.state.IsRunning:
		m.mode = modeWatching
	default:
		m.mode = modeFinished
	}
	m.refreshLog()
}

func (m *Model) refreshLog() {
	width := m.viewport.Width
	parts := make([]string, 0, len(m.state.Steps))
	for _, step := range m.state.Steps {
		parts = append(parts, renderStep(step, width))
	}
	m.viewport.SetContent(strings.Join(parts, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) pending() *schema.DisagreementData {
	if m.state.PendingDecision == nil {
		return nil
	}
	return m.state.Steps[*m.state.PendingDecision].Disagreement
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("  ")
	b.WriteString(taglineStyle.Render("AI models collaborate. You referee disagreements."))
	b.WriteString("\n\n")

	switch m.mode {
	case modeEntry:
		b.WriteString("Task: ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	default:
		b.WriteString(m.statusLine())
		b.WriteString("\n\n")
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
	}

	if d := m.pending(); d != nil && m.mode == modeDeciding {
		b.WriteString("\n")
		b.WriteString(m.gateView(d))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) statusLine() string {
	exchanges := fmt.Sprintf("Shared context: %d", m.state.Exchanges())
	switch {
	case m.state.IsRunning && m.state.CurrentPhase != "":
		return m.spinner.View() + " " + phaseStyle.Render(m.state.CurrentPhase) + "  " + mutedStyle.Render(exchanges)
	case m.state.Status == schema.RunStatusFailed:
		return errorStyle.Render("Run failed") + "  " + mutedStyle.Render(exchanges)
	default:
		return phaseStyle.Render(string(m.state.Status)) + "  " + mutedStyle.Render(exchanges)
	}
}

func (m Model) gateView(d *schema.DisagreementData) string {
	var b strings.Builder
	b.WriteString(phaseStyle.Render("Your call: " + d.Topic))
	for i, o := range d.Options {
		line := fmt.Sprintf("%d. %s (%s)", i+1, o.Position, agentName(o.Agent))
		b.WriteString("\n")
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
	}
	return gateStyle.Render(b.String())
}

func (m Model) help() string {
	switch m.mode {
	case modeEntry:
		return "enter: start · esc: quit"
	case modeDeciding:
		return "↑/↓: move · enter or 1/2: choose · ctrl+c: quit"
	case modeFinished:
		return "n: new task · q: quit"
	default:
		return "↑/↓: scroll · ctrl+c: quit"
	}
}
