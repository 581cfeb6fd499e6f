package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"newsdesk/orchestrator"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		if msg.Width > 20 && msg.Width != m.width {
			m.width = msg.Width
			m.render = markdownRenderer(msg.Width - 4)
		}
		return m, nil
	case PhaseMsg:
		return m.handlePhase(msg)
	case StreamClosedMsg:
		m.Closed = true
		return m, nil
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.Cancel()
		return m, tea.Quit
	case "r":
		if m.Retry == nil || !m.Done() {
			return m, nil
		}
		phases, err := m.Retry()
		if err != nil {
			m.Err = err
			return m, nil
		}
		m.Phases = phases
		m.Current = orchestrator.PhaseIdle
		m.Result, m.Err, m.Closed = nil, nil, false
		m = m.addStep(time.Now(), "Regenerating briefing")
		return m, waitForPhase(phases)
	}
	return m, nil
}

func (m Model) handlePhase(msg PhaseMsg) (tea.Model, tea.Cmd) {
	m.Current = msg.Phase.Name()
	m = m.addStep(msg.At, "%s", Describe(msg.Phase))

	switch p := msg.Phase.(type) {
	case orchestrator.Done:
		res := p.Result
		m.Result = &res
		return m, nil
	case orchestrator.Failed:
		m.Err = p.Err
		return m, nil
	}
	return m, waitForPhase(m.Phases)
}
