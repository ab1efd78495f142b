package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researcher/internal/domain"
	"researcher/internal/service"
)

type fakeRunner struct {
	events []service.Event
	err    error
}

func (f *fakeRunner) Stream(_ context.Context, _ string, emit func(service.Event) error) (*domain.State, error) {
	for _, ev := range f.events {
		if err := emit(ev); err != nil {
			return nil, err
		}
	}
	return nil, f.err
}

// drain feeds every message produced by cmd back into the model until the run ends.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil && i < 100; i++ {
		msg := cmd()
		next, c := m.Update(msg)
		m = next.(Model)
		if _, done := msg.(doneMsg); done {
			return m
		}
		cmd = c
	}
	return m
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func TestModelStreamsRun(t *testing.T) {
	runner := &fakeRunner{events: []service.Event{
		{Type: service.EventStart, Message: "Starting research..."},
		{Type: service.EventAgent, Agent: service.AgentManager, Status: service.StatusRunning},
		{Type: service.EventAgent, Agent: service.AgentManager, Status: service.StatusComplete, Message: "Strategy: direct_answer"},
		{Type: service.EventAgent, Agent: service.AgentSummary, Status: service.StatusRunning},
		{Type: service.EventSummaryStart},
		{Type: service.EventSummaryChunk, Content: "- 2+2 "},
		{Type: service.EventSummaryChunk, Content: "is 4."},
		{Type: service.EventAgent, Agent: service.AgentSummary, Status: service.StatusComplete, Message: "Summary generated"},
		{Type: service.EventComplete, FinalAnswer: "- 2+2 is 4.", Logs: []string{"Manager: strategy direct_answer"}},
	}}
	m := sized(New(context.Background(), runner, ""))
	m.input.SetValue("What is 2+2?")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.True(t, m.running)
	require.NotNil(t, cmd)

	m = drain(t, m, cmd)
	assert.False(t, m.running)
	assert.Equal(t, "- 2+2 is 4.", m.answer)
	assert.Equal(t, []string{"Manager: strategy direct_answer"}, m.logs)
	assert.Equal(t, "Research complete.", m.status)
	assert.Equal(t, "Strategy: direct_answer", m.agents[service.AgentManager].message)
	_, visited := m.agents[service.AgentResearch]
	assert.False(t, visited)

	view := m.View()
	assert.Contains(t, view, "Strategy: direct_answer")
	assert.Contains(t, view, "Research Assistant")
}

func TestModelShowsErrors(t *testing.T) {
	runner := &fakeRunner{
		events: []service.Event{{Type: service.EventError, Message: "provider call failed"}},
		err:    errors.New("provider call failed"),
	}
	m := sized(New(context.Background(), runner, ""))
	m.input.SetValue("q")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, next.(Model), cmd)

	assert.False(t, m.running)
	assert.Contains(t, m.status, "provider call failed")
}

func TestModelIgnoresBlankQuery(t *testing.T) {
	m := sized(New(context.Background(), &fakeRunner{}, "memory unavailable"))
	m.input.SetValue("   ")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.False(t, m.running)
	assert.Contains(t, m.status, "memory unavailable")
}

func TestApplySummaryChunksInOrder(t *testing.T) {
	m := New(context.Background(), &fakeRunner{}, "")
	m.apply(service.Event{Type: service.EventSummaryStart})
	for _, tok := range []string{"a", "b", "c"} {
		m.apply(service.Event{Type: service.EventSummaryChunk, Content: tok})
	}
	assert.Equal(t, "abc", m.answer)
}
