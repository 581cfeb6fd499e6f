package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"newsdesk/orchestrator"
	"newsdesk/types"
)

// RegisterResearchRoutes registers research, cache peek and translation
// routes.
func RegisterResearchRoutes(r *gin.Engine, s *server) {
	g := r.Group("/api")
	g.POST("/research/:id", s.handleResearch)
	g.GET("/research/:id", s.handlePeekSummary)
	g.GET("/scraped", s.handlePeekScraped)
	g.POST("/translate/:id", s.handleTranslate)
}

// phaseEvent is the SSE payload of one phase transition.
type phaseEvent struct {
	Phase      string               `json:"phase"`
	URL        string               `json:"url,omitempty"`
	Fallback   bool                 `json:"fallback,omitempty"`
	Query      string               `json:"query,omitempty"`
	Related    *int                 `json:"related,omitempty"`
	WebResults *int                 `json:"web_results,omitempty"`
	Scraped    bool                 `json:"scraped,omitempty"`
	Result     *orchestrator.Result `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
}

func toEvent(p orchestrator.Phase) phaseEvent {
	ev := phaseEvent{Phase: p.Name()}
	switch p := p.(type) {
	case orchestrator.Scraping:
		ev.URL, ev.Fallback = p.URL, p.Fallback
	case orchestrator.SearchingWeb:
		ev.Query = p.Query
	case orchestrator.Generating:
		ev.Related, ev.WebResults, ev.Scraped = &p.Related, &p.WebResults, p.Scraped
	case orchestrator.Done:
		ev.Result = &p.Result
	case orchestrator.Failed:
		ev.Error = p.Err.Error()
	}
	return ev
}

func (s *server) article(c *gin.Context) (types.Article, bool) {
	a, ok := s.Board.Find(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown article: " + c.Param("id")})
	}
	return a, ok
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidArticle), errors.Is(err, orchestrator.ErrEmptyChatMessage):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrNoGenerator):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func queryFlag(c *gin.Context, key string, def bool) bool {
	v, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// handleResearch streams the phases of a research request as Server-Sent
// Events. The request is tied to the connection: a client that disconnects
// abandons it.
func (s *server) handleResearch(c *gin.Context) {
	article, ok := s.article(c)
	if !ok {
		return
	}
	opts := orchestrator.ResearchOptions{
		FullContent:   queryFlag(c, "full", false),
		Force:         queryFlag(c, "force", false),
		SkipWebSearch: !queryFlag(c, "web", true),
	}

	phases, err := s.Orchestrator.RequestResearch(c.Request.Context(), article, opts)
	if err != nil {
		errorJSON(c, statusFor(err), err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		p, ok := <-phases
		if !ok {
			return false
		}
		c.SSEvent(p.Name(), toEvent(p))
		return !orchestrator.Terminal(p)
	})
	// drain so the producer never blocks on an abandoned stream
	for range phases {
	}
}

func (s *server) handlePeekSummary(c *gin.Context) {
	entry, ok := s.Orchestrator.PeekCachedSummary(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached summary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": entry.Payload, "cached_at": entry.CachedAt})
}

func (s *server) handlePeekScraped(c *gin.Context) {
	link := c.Query("link")
	if link == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "link is required"})
		return
	}
	entry, ok := s.Orchestrator.PeekScrapedContent(link)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached content"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": entry.Payload, "cached_at": entry.CachedAt})
}

type translateRequest struct {
	Language string `json:"language"`
}

func (s *server) handleTranslate(c *gin.Context) {
	article, ok := s.article(c)
	if !ok {
		return
	}
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	out, err := s.Orchestrator.Translate(c.Request.Context(), article, req.Language)
	if err != nil {
		errorJSON(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"article_id": article.ID, "translation": out})
}
