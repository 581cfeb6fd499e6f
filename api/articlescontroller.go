package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"newsdesk/deduplication"
	"newsdesk/types"
)

// RegisterGroupRoutes registers the group listing and refresh routes.
func RegisterGroupRoutes(r *gin.Engine, s *server) {
	g := r.Group("/api/groups")
	g.GET("", s.handleListGroups)
	g.GET("/:group/articles", s.handleGroupArticles)
	g.POST("/:group/refresh", s.handleGroupRefresh)
	r.GET("/api/refresh/history", s.handleRefreshHistory)
}

type groupSummary struct {
	Name     string `json:"name"`
	Sources  int    `json:"sources"`
	Articles int    `json:"articles"`
}

func (s *server) handleListGroups(c *gin.Context) {
	snap := s.Board.Snapshot()
	out := []groupSummary{}
	seen := map[string]bool{}
	if s.Refresher != nil {
		for _, g := range s.Refresher.Groups() {
			articles, _ := snap.Articles(g.Name)
			out = append(out, groupSummary{Name: g.Name, Sources: len(g.Sources), Articles: len(articles)})
			seen[g.Name] = true
		}
	}
	for _, name := range snap.Groups() {
		if !seen[name] {
			articles, _ := snap.Articles(name)
			out = append(out, groupSummary{Name: name, Articles: len(articles)})
		}
	}
	c.JSON(http.StatusOK, gin.H{"groups": out})
}

// handleGroupArticles lists a group's articles, newest first, optionally
// restricted to an age window (?window=1d|3d|7d).
func (s *server) handleGroupArticles(c *gin.Context) {
	group := c.Param("group")
	window, err := deduplication.ParseAgeWindow(c.Query("window"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	articles, ok := s.Board.View(group, window, s.Now())
	if !ok {
		if !s.subscribed(group) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown group: " + group})
			return
		}
		articles = []types.Article{}
	}
	c.JSON(http.StatusOK, gin.H{
		"group":    group,
		"window":   window.String(),
		"articles": articles,
	})
}

func (s *server) subscribed(group string) bool {
	if s.Refresher == nil {
		return false
	}
	for _, g := range s.Refresher.Groups() {
		if g.Name == group {
			return true
		}
	}
	return false
}
