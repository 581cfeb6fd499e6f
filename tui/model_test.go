package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/cache"
	"newsdesk/orchestrator"
	"newsdesk/types"
)

var at = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func feed(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestModelFollowsPhases(t *testing.T) {
	phases := make(chan orchestrator.Phase)
	m := NewModel(types.Article{ID: "a1", Title: "Harbour expansion approved"}, phases, nil)
	m.render = func(s string) string { return s }

	m = feed(t, m,
		PhaseMsg{Phase: orchestrator.Scraping{URL: "https://news.example/harbour"}, At: at},
		PhaseMsg{Phase: orchestrator.FindingRelated{}, At: at},
		PhaseMsg{Phase: orchestrator.SearchingWeb{Query: "harbour expansion"}, At: at},
		PhaseMsg{Phase: orchestrator.Generating{Related: 2, WebResults: 1, Scraped: true}, At: at},
	)
	assert.Equal(t, orchestrator.PhaseGenerating, m.Current)
	assert.False(t, m.Done())
	assert.Contains(t, m.View(), "Writing briefing from full text, 2 related, 1 web results")

	m = feed(t, m, PhaseMsg{At: at, Phase: orchestrator.Done{Result: orchestrator.Result{
		Summary: cache.Summary{
			Text:    "The council approved the plan.",
			Related: []cache.RelatedRef{{Title: "Port traffic rises", Matched: []string{"harbour", "port"}}},
			Web:     []cache.WebRef{{Title: "Council minutes", URL: "https://council.example/minutes"}},
		},
	}}})
	require.True(t, m.Done())
	view := m.View()
	assert.Contains(t, view, "Complete")
	assert.Contains(t, view, "The council approved the plan.")
	assert.Contains(t, view, "- Port traffic rises (harbour, port)")
	assert.Contains(t, view, "[Council minutes](https://council.example/minutes)")
	assert.Len(t, m.Steps, 5)
}

func TestModelShowsFailure(t *testing.T) {
	m := NewModel(types.Article{Title: "x"}, nil, nil)
	m = feed(t, m, PhaseMsg{Phase: orchestrator.Failed{Err: errors.New("rate limited")}, At: at})
	assert.True(t, m.Done())
	assert.Contains(t, m.View(), "rate limited")
}

func TestQuitCancels(t *testing.T) {
	canceled := false
	m := NewModel(types.Article{Title: "x"}, nil, func() { canceled = true })
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.True(t, canceled)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWaitForPhase(t *testing.T) {
	phases := make(chan orchestrator.Phase, 1)
	phases <- orchestrator.FindingRelated{}
	close(phases)

	msg := waitForPhase(phases)()
	require.IsType(t, PhaseMsg{}, msg)
	assert.Equal(t, orchestrator.PhaseFindingRelated, msg.(PhaseMsg).Phase.Name())
	assert.Equal(t, StreamClosedMsg{}, waitForPhase(phases)())
}

func TestDescribeSkippedSearch(t *testing.T) {
	assert.Equal(t, "Skipping web search", Describe(orchestrator.SearchingWeb{}))
	assert.Equal(t, "Trying linked page https://x.example", Describe(orchestrator.Scraping{URL: "https://x.example", Fallback: true}))
}

func TestRetryStartsFreshStream(t *testing.T) {
	next := make(chan orchestrator.Phase, 1)
	next <- orchestrator.Idle{}
	retries := 0
	m := NewModel(types.Article{Title: "x"}, nil, nil)
	m.render = func(s string) string { return s }
	m.Retry = func() (<-chan orchestrator.Phase, error) {
		retries++
		return next, nil
	}

	// ignored while the first request is still running
	m = feed(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Zero(t, retries)

	m = feed(t, m, PhaseMsg{At: at, Phase: orchestrator.Done{Result: orchestrator.Result{Summary: cache.Summary{Text: "first"}}}})
	assert.Contains(t, m.View(), "Press 'r' to regenerate")

	next2, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next2.(Model)
	assert.Equal(t, 1, retries)
	assert.False(t, m.Done())
	assert.Nil(t, m.Result)
	assert.Equal(t, orchestrator.PhaseIdle, m.Current)
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, PhaseMsg{}, msg)
	assert.Equal(t, orchestrator.PhaseIdle, msg.(PhaseMsg).Phase.Name())
}

func TestRetryFailureIsShown(t *testing.T) {
	m := NewModel(types.Article{Title: "x"}, nil, nil)
	m.Retry = func() (<-chan orchestrator.Phase, error) { return nil, errors.New("no language model configured") }
	m = feed(t, m,
		PhaseMsg{At: at, Phase: orchestrator.Failed{Err: errors.New("timeout")}},
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")},
	)
	assert.EqualError(t, m.Err, "no language model configured")
}

func TestDescribeIdle(t *testing.T) {
	assert.Equal(t, "Queued", Describe(orchestrator.Idle{}))
}
