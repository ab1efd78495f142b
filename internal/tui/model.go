package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"researcher/internal/domain"
	"researcher/internal/service"
)

// StreamPort is the TUI-facing subset of the pipeline.
type StreamPort interface {
	Stream(ctx context.Context, query string, emit func(service.Event) error) (*domain.State, error)
}

var agentOrder = []string{service.AgentManager, service.AgentResearch, service.AgentValidation, service.AgentSummary}

type agentStatus struct {
	status  string
	message string
}

type eventMsg struct{ event service.Event }

type doneMsg struct{ err error }

// Model is the Bubble Tea model for the interactive research client.
type Model struct {
	runner   StreamPort
	input    textinput.Model
	viewport viewport.Model
	ctx      context.Context

	cancel  context.CancelFunc
	events  chan tea.Msg
	running bool

	agents    map[string]agentStatus
	answer    string
	logs      []string
	status    string
	ready     bool
	lastQuery string
}

// New creates a new TUI model instance. Runs are cancelled with ctx.
func New(ctx context.Context, runner StreamPort, memoryNote string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	status := "Ready."
	if memoryNote != "" {
		status = "Ready. " + memoryNote
	}
	return Model{runner: runner, ctx: ctx, input: ti, viewport: vp, agents: map[string]agentStatus{}, status: status}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and pipeline events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + len(agentOrder) + 1 + qh + 1 // header, agents, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.running {
				m.input.SetValue("")
				return m.start(q)
			}
			return m, nil
		case "esc":
			if m.running && m.cancel != nil {
				m.cancel()
				m.status = "Cancelled."
			}
			return m, nil
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case eventMsg:
		m.apply(msg.event)
		m.viewport.SetContent(m.renderAnswer())
		m.viewport.GotoBottom()
		return m, wait(m.events)
	case doneMsg:
		m.running = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if msg.err != nil && m.status != "Cancelled." {
			m.status = "Error: " + msg.err.Error()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// start launches a streamed run; its events come back as messages.
func (m Model) start(q string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.ctx)
	events := make(chan tea.Msg, 32)
	m.cancel = cancel
	m.events = events
	m.running = true
	m.lastQuery = q
	m.agents = map[string]agentStatus{}
	m.answer = ""
	m.logs = nil
	m.status = fmt.Sprintf("Researching %q...", q)

	runner := m.runner
	go func() {
		defer close(events)
		_, err := runner.Stream(ctx, q, func(ev service.Event) error {
			select {
			case events <- eventMsg{ev}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		select {
		case events <- doneMsg{err}:
		case <-ctx.Done():
		}
	}()
	m.viewport.SetContent(m.renderAnswer())
	return m, wait(events)
}

func wait(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return msg
	}
}

func (m *Model) apply(ev service.Event) {
	switch ev.Type {
	case service.EventStart:
		m.status = ev.Message
	case service.EventAgent:
		m.agents[ev.Agent] = agentStatus{status: ev.Status, message: ev.Message}
	case service.EventSummaryStart:
		m.answer = ""
	case service.EventSummaryChunk:
		m.answer += ev.Content
	case service.EventComplete:
		m.answer = ev.FinalAnswer
		m.logs = ev.Logs
		m.status = "Research complete."
	case service.EventError:
		m.status = "Error: " + ev.Message
	}
}

// View renders the progress of each agent, the answer and the input box.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Research Assistant"))
	b.WriteString("\n")
	for _, name := range agentOrder {
		b.WriteString(m.renderAgent(name))
		b.WriteString("\n")
	}
	b.WriteString(resultBoxStyle.Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(queryBoxStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	return b.String()
}

func (m Model) renderAgent(name string) string {
	st, ok := m.agents[name]
	switch {
	case !ok:
		return pendingStyle.Render("  · " + name)
	case st.status == service.StatusRunning:
		return runningStyle.Render("  … " + name + ": " + st.message)
	default:
		return doneStyle.Render("  ✓ " + name + ": " + st.message)
	}
}

func (m Model) renderAnswer() string {
	if m.answer == "" && len(m.logs) == 0 {
		if m.running {
			return "Working..."
		}
		return "No answer yet."
	}
	var b strings.Builder
	if m.lastQuery != "" {
		b.WriteString(questionStyle.Render(m.lastQuery))
		b.WriteString("\n\n")
	}
	b.WriteString(m.answer)
	if len(m.logs) > 0 {
		b.WriteString("\n\n")
		b.WriteString(logStyle.Render("Agent logs"))
		for _, l := range m.logs {
			b.WriteString("\n")
			b.WriteString(logStyle.Render("• " + l))
		}
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle    = lipgloss.NewStyle().Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	doneStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	logStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
