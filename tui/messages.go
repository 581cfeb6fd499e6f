package tui

import (
	"time"

	"newsdesk/orchestrator"
)

// PhaseMsg carries the next phase of the research stream.
type PhaseMsg struct {
	Phase orchestrator.Phase
	At    time.Time
}

// StreamClosedMsg is sent when the phase channel closes.
type StreamClosedMsg struct{}
