package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHealthRoutes registers the health endpoint.
func RegisterHealthRoutes(r *gin.Engine, s *server) {
	r.GET("/api/health", s.handleHealth)
}

func (s *server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "healthy"}
	if s.Board != nil {
		snap := s.Board.Snapshot()
		resp["groups"] = len(snap.Groups())
		resp["articles"] = snap.Len()
	}
	if s.CacheStats != nil {
		resp["cache"] = s.CacheStats()
	}
	c.JSON(http.StatusOK, resp)
}
