package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/cache"
	"newsdesk/ingestion"
	"newsdesk/llm"
	"newsdesk/orchestrator"
	"newsdesk/rssfeeds"
	"newsdesk/types"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type scriptedGenerator struct {
	mu  sync.Mutex
	err error
}

func (g *scriptedGenerator) Generate(_ context.Context, messages []llm.Message, _ llm.ModelConfig) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	last := messages[len(messages)-1].Content
	if strings.HasPrefix(last, "Translate into") {
		return "traduit", nil
	}
	return "briefing text", nil
}

func (g *scriptedGenerator) fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

type fixture struct {
	router    *gin.Engine
	board     *ingestion.Board
	refresher *ingestion.Refresher
	gen       *scriptedGenerator
}

func newFixture(t *testing.T, withGenerator bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	board := ingestion.NewBoard()
	board.ReplaceGroup("news", []types.Article{
		{ID: "n1", Title: "Rail line reopens after repairs", Link: "https://news.example/rail",
			Snippet: "Trains run again.", PublishedAt: now.Add(-2 * time.Hour)},
		{ID: "n2", Title: "Museum opens new wing", Link: "https://news.example/museum",
			Snippet: "A new wing.", PublishedAt: now.Add(-4 * 24 * time.Hour)},
	})

	fetch := func(_ context.Context, sources []types.Source, _ rssfeeds.FetchOptions) []rssfeeds.FeedResult {
		out := make([]rssfeeds.FeedResult, len(sources))
		for i, src := range sources {
			out[i] = rssfeeds.FeedResult{Source: src, Articles: []types.Article{
				{ID: "t1", Title: "Chip maker beats forecasts", Link: "https://tech.example/chips", PublishedAt: now},
			}}
		}
		return out
	}
	refresher := ingestion.NewRefresher(ingestion.RefresherConfig{
		Board: board,
		Groups: []types.Group{
			{Name: "news", Sources: []types.Source{{Name: "News", URL: "https://news.example/rss"}}},
			{Name: "tech", Sources: []types.Source{{Name: "Tech", URL: "https://tech.example/rss"}}},
		},
		Fetch: fetch,
	})

	c := cache.Open(context.Background(), cache.NewMemoryStore(),
		cache.WithClock(cache.ClockFunc(func() time.Time { return now })))

	f := &fixture{board: board, refresher: refresher}
	deps := orchestrator.Deps{Cache: c, Articles: board}
	if withGenerator {
		f.gen = &scriptedGenerator{}
		deps.Generator = f.gen
	}
	orch, err := orchestrator.New(deps, orchestrator.Config{})
	require.NoError(t, err)

	f.router = NewRouter(Deps{
		Board:        board,
		Refresher:    refresher,
		Orchestrator: orch,
		CacheStats:   c.Stats,
		Now:          func() time.Time { return now },
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["groups"])
	assert.EqualValues(t, 2, body["articles"])
}

func TestGroupArticles(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/api/groups/news/articles?window=1d", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Window   string          `json:"window"`
		Articles []types.Article `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1d", resp.Window)
	require.Len(t, resp.Articles, 1)
	assert.Equal(t, "n1", resp.Articles[0].ID)

	w = f.do(t, http.MethodGet, "/api/groups/news/articles?window=2d", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/groups/sport/articles", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// subscribed but not yet fetched
	w = f.do(t, http.MethodGet, "/api/groups/tech/articles", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["articles"])
}

func TestListGroups(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(t, http.MethodGet, "/api/groups", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Groups []groupSummary `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []groupSummary{
		{Name: "news", Sources: 1, Articles: 2},
		{Name: "tech", Sources: 1, Articles: 0},
	}, resp.Groups)
}

func TestGroupRefresh(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/api/groups/sport/refresh", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/groups/tech/refresh", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		articles, ok := f.board.Snapshot().Articles("tech")
		return ok && len(articles) == 1 && len(f.refresher.History()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	w = f.do(t, http.MethodGet, "/api/refresh/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Reports []ingestion.Report `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "tech", resp.Reports[0].Group)
}

func TestResearchStreamsPhases(t *testing.T) {
	f := newFixture(t, true)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	w := f.do(t, http.MethodGet, "/api/research/n1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	resp, err := http.Post(srv.URL+"/api/research/n1?web=0", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	stream := string(raw)
	for _, name := range []string{"finding-related", "searching-web", "generating", "done"} {
		assert.Contains(t, stream, "event:"+name)
	}
	assert.Less(t, strings.Index(stream, "event:generating"), strings.Index(stream, "event:done"))
	assert.Contains(t, stream, "briefing text")

	w = f.do(t, http.MethodGet, "/api/research/n1", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)["summary"].(map[string]any)
	assert.Equal(t, "briefing text", summary["text"])
}

func TestResearchErrors(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/research/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/research/n1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestScrapedPeek(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/api/scraped", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/scraped?link=https://news.example/rail", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/api/chat/n1", `{"text":"What changed?"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["messages"], 2)

	w = f.do(t, http.MethodGet, "/api/chat/n1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var view chatView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, string(orchestrator.ChatIdle), view.State)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, cache.RoleUser, view.Messages[0].Role)
	assert.Equal(t, "briefing text", view.Messages[1].Text)

	w = f.do(t, http.MethodPost, "/api/chat/n1", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/chat/missing", `{"text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatGenerationFailure(t *testing.T) {
	f := newFixture(t, true)
	f.gen.fail(errors.New("provider unavailable"))

	w := f.do(t, http.MethodPost, "/api/chat/n1", `{"text":"What changed?"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w)
	assert.Equal(t, "provider unavailable", body["error"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	reply := messages[1].(map[string]any)
	assert.Equal(t, true, reply["failed"])
	assert.Equal(t, "Error: provider unavailable", reply["text"])
}

func TestTranslate(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/api/translate/n1", `{"language":"French"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "traduit", decode(t, w)["translation"])

	// no body defaults the language
	w = f.do(t, http.MethodPost, "/api/translate/n1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

const aggregatorFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Aggregator</title>
  <item>
    <title>Show: a tiny database</title>
    <link>https://origin.example/tiny-db</link>
    <guid isPermaLink="false">https://news.ycombinator.com/item?id=42</guid>
  </item>
</channel>
</rss>`

func TestFeedArticleRoutesAddressable(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(aggregatorFeed))
	}))
	defer feed.Close()

	f := newFixture(t, true)
	articles, err := rssfeeds.FetchFeed(context.Background(), types.Source{Name: "Aggregator", URL: feed.URL}, 5)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	f.board.ReplaceGroup("aggregator", articles)
	id := articles[0].ID
	assert.Equal(t, types.GenerateID("https://news.ycombinator.com/item?id=42"), id)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/research/"+id+"?web=0", "", nil)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "event:done")

	w := f.do(t, http.MethodGet, "/api/research/"+id, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/translate/"+id, `{"language":"French"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "traduit", decode(t, w)["translation"])

	w = f.do(t, http.MethodPost, "/api/chat/"+id, `{"text":"Who built it?"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["messages"], 2)
}
