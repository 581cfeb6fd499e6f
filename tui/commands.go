package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"newsdesk/orchestrator"
)

// waitForPhase blocks on the next phase of the stream.
func waitForPhase(phases <-chan orchestrator.Phase) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-phases
		if !ok {
			return StreamClosedMsg{}
		}
		return PhaseMsg{Phase: p, At: time.Now()}
	}
}
