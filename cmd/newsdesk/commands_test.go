package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/cache"
	"newsdesk/common"
	"newsdesk/ingestion"
	"newsdesk/llm"
	"newsdesk/orchestrator"
	"newsdesk/tui"
	"newsdesk/types"
)

func TestResolveArticle(t *testing.T) {
	board := ingestion.NewBoard()
	board.ReplaceGroup("news", []types.Article{
		{ID: "a1", Title: "Rail line reopens", Link: "https://news.example/rail"},
	})

	got, ok := resolveArticle(board, "a1")
	require.True(t, ok)
	assert.Equal(t, "a1", got.ID)

	got, ok = resolveArticle(board, "HTTPS://news.example/rail ")
	require.True(t, ok)
	assert.Equal(t, "a1", got.ID)

	got, ok = resolveArticle(board, "https://elsewhere.example/story")
	assert.False(t, ok)
	assert.Equal(t, types.GenerateID("https://elsewhere.example/story"), got.ID)
	assert.Equal(t, "https://elsewhere.example/story", got.Title)
	assert.True(t, looksLikeLink(got.Link))
	assert.False(t, looksLikeLink("a1"))
}

func TestPrintPhases(t *testing.T) {
	phases := make(chan orchestrator.Phase, 3)
	phases <- orchestrator.FindingRelated{}
	phases <- orchestrator.Done{Result: orchestrator.Result{Summary: cache.Summary{
		Text:    "Trains run again.",
		Related: []cache.RelatedRef{{Title: "Depot upgrade", Link: "https://news.example/depot"}},
	}}}
	close(phases)

	var out bytes.Buffer
	require.NoError(t, printPhases(&out, phases))
	assert.Contains(t, out.String(), "Looking for related coverage")
	assert.Contains(t, out.String(), "Trains run again.")
	assert.Contains(t, out.String(), "Depot upgrade")
}

func TestPrintPhasesReturnsFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	phases := make(chan orchestrator.Phase, 1)
	phases <- orchestrator.Failed{Err: boom}
	close(phases)

	assert.Same(t, boom, printPhases(&bytes.Buffer{}, phases))
}

func TestPrintReportsAndStats(t *testing.T) {
	var out bytes.Buffer
	printReports(&out, []ingestion.Report{{
		Group: "news", Sources: 2, Articles: 7, Duration: 1500 * time.Millisecond,
		Failed: []ingestion.SourceFailure{{Source: "ST", Error: "timeout"}},
	}})
	assert.Contains(t, out.String(), "news")
	assert.Contains(t, out.String(), "news: ST: timeout")

	out.Reset()
	printStats(&out, cache.Stats{cache.KindSummary: {Fresh: 3, Expired: 1}, cache.KindChat: {}})
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "chat")
	assert.Contains(t, string(lines[2]), "summary")
}

type countingGenerator struct{ calls atomic.Int32 }

func (g *countingGenerator) Generate(context.Context, []llm.Message, llm.ModelConfig) (string, error) {
	n := g.calls.Add(1)
	return fmt.Sprintf("briefing %d", n), nil
}

func drain(t *testing.T, phases <-chan orchestrator.Phase) orchestrator.Phase {
	t.Helper()
	var last orchestrator.Phase
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p, ok := <-phases:
			if !ok {
				return last
			}
			last = p
		case <-timeout:
			t.Fatal("phase stream did not close")
		}
	}
}

func TestResearchModelRegeneratesThroughSession(t *testing.T) {
	gen := &countingGenerator{}
	c := cache.Open(context.Background(), cache.NewMemoryStore())
	defer c.Close()
	orch, err := orchestrator.New(orchestrator.Deps{Cache: c, Generator: gen}, orchestrator.Config{})
	require.NoError(t, err)

	article := types.Article{ID: "a1", Title: "Rail line reopens after repairs", Snippet: "Trains run again."}
	session := orch.NewSession(context.Background())
	phases, err := session.Focus(article, orchestrator.ResearchOptions{SkipWebSearch: true})
	require.NoError(t, err)

	m := researchModel(session, article, orchestrator.ResearchOptions{SkipWebSearch: true}, phases)
	first := drain(t, phases).(orchestrator.Done)
	assert.Equal(t, "briefing 1", first.Result.Summary.Text)

	next, _ := m.Update(tui.PhaseMsg{Phase: first, At: time.Now()})
	next, _ = next.(tui.Model).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(tui.Model)
	require.NoError(t, m.Err)
	assert.Equal(t, "a1", session.Current())

	// the cached briefing is bypassed
	second := drain(t, m.Phases).(orchestrator.Done)
	assert.False(t, second.Result.FromCache)
	assert.Equal(t, "briefing 2", second.Result.Summary.Text)
	assert.EqualValues(t, 2, gen.calls.Load())

	m.Cancel()
	assert.Empty(t, session.Current())
}

type memoryArchive map[string]common.ArchivedSummary

func (m memoryArchive) ArticleIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m memoryArchive) Fetch(_ context.Context, id string) (common.ArchivedSummary, error) {
	doc, ok := m[id]
	if !ok {
		return common.ArchivedSummary{}, common.ErrObjectNotFound
	}
	return doc, nil
}

func TestArchiveListAndShow(t *testing.T) {
	archivedAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	archive := memoryArchive{
		"3f2a": {ArticleID: "3f2a", Title: "Rail line reopens", Link: "https://news.example/rail",
			Summary: cache.Summary{Text: "Trains run again."}, ArchivedAt: archivedAt},
		"9c1d": {ArticleID: "9c1d", Title: "Museum opens new wing", ArchivedAt: archivedAt},
	}
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, listArchive(ctx, &out, archive))
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "Rail line reopens")
	assert.Contains(t, string(lines[2]), "9c1d")

	out.Reset()
	require.NoError(t, showArchived(ctx, &out, archive, "3f2a"))
	assert.Contains(t, out.String(), "https://news.example/rail")
	assert.Contains(t, out.String(), "Trains run again.")
	assert.Contains(t, out.String(), "(archived ")

	err := showArchived(ctx, &bytes.Buffer{}, archive, "missing")
	assert.EqualError(t, err, `no archived briefing for "missing"`)

	out.Reset()
	require.NoError(t, listArchive(ctx, &out, memoryArchive{}))
	assert.Equal(t, "no archived briefings\n", out.String())
}
