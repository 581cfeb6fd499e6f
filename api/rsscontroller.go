package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleGroupRefresh refetches a group's feeds in the background and returns
// 202 Accepted immediately.
func (s *server) handleGroupRefresh(c *gin.Context) {
	group := c.Param("group")
	if !s.subscribed(group) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown group: " + group})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.RefreshTimeout)
		defer cancel()
		if _, err := s.Refresher.RefreshGroup(ctx, group); err != nil {
			s.Logger.Warn("api refresh failed", zap.String("group", group), zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh started", "group": group})
}

func (s *server) handleRefreshHistory(c *gin.Context) {
	if s.Refresher == nil {
		c.JSON(http.StatusOK, gin.H{"reports": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": s.Refresher.History()})
}
