// Package tui renders the progress of one research request in the
// terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"newsdesk/orchestrator"
	"newsdesk/types"
)

// Step is one line of the activity log.
type Step struct {
	At   time.Time
	Text string
}

// Model is the research progress view. It consumes a phase stream until the
// stream ends or the user quits; quitting calls Cancel.
type Model struct {
	Article types.Article
	Phases  <-chan orchestrator.Phase
	Cancel  func()
	// Retry, when set, starts a fresh request once the current one has
	// finished.
	Retry func() (<-chan orchestrator.Phase, error)

	Current string
	Steps   []Step
	Result  *orchestrator.Result
	Err     error
	Closed  bool

	width  int
	render func(string) string
}

// NewModel creates a model for article's research stream.
func NewModel(article types.Article, phases <-chan orchestrator.Phase, cancel func()) Model {
	if cancel == nil {
		cancel = func() {}
	}
	return Model{
		Article: article,
		Phases:  phases,
		Cancel:  cancel,
		Current: orchestrator.PhaseIdle,
		width:   80,
		render:  markdownRenderer(76),
	}
}

func markdownRenderer(wrap int) func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return func(s string) string { return s }
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s
		}
		return strings.TrimRight(out, "\n")
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForPhase(m.Phases)
}

// Done reports whether the stream has produced its terminal phase.
func (m Model) Done() bool {
	return m.Result != nil || m.Err != nil
}

func (m Model) addStep(at time.Time, format string, args ...any) Model {
	m.Steps = append(m.Steps, Step{At: at, Text: fmt.Sprintf(format, args...)})
	return m
}

// Describe turns a phase into a log line.
func Describe(p orchestrator.Phase) string {
	switch p := p.(type) {
	case orchestrator.Idle:
		return "Queued"
	case orchestrator.Scraping:
		if p.Fallback {
			return "Trying linked page " + p.URL
		}
		return "Extracting " + p.URL
	case orchestrator.FindingRelated:
		return "Looking for related coverage"
	case orchestrator.SearchingWeb:
		if p.Query == "" {
			return "Skipping web search"
		}
		return fmt.Sprintf("Searching the web for %q", p.Query)
	case orchestrator.Generating:
		source := "feed excerpt"
		if p.Scraped {
			source = "full text"
		}
		return fmt.Sprintf("Writing briefing from %s, %d related, %d web results", source, p.Related, p.WebResults)
	case orchestrator.Done:
		if p.Result.FromCache {
			return "Loaded cached briefing"
		}
		return "Briefing ready"
	case orchestrator.Failed:
		return "Failed: " + p.Err.Error()
	default:
		return p.Name()
	}
}
