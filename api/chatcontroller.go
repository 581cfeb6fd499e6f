package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"newsdesk/cache"
	"newsdesk/orchestrator"
)

// RegisterChatRoutes registers the follow-up chat routes.
func RegisterChatRoutes(r *gin.Engine, s *server) {
	g := r.Group("/api/chat")
	g.GET("/:id", s.handleGetChat)
	g.POST("/:id", s.handlePostChat)
}

func (s *server) handleGetChat(c *gin.Context) {
	id := c.Param("id")
	view := chatView{
		ArticleID: id,
		State:     string(s.Orchestrator.ChatState(id)),
		Messages:  []cache.ChatMessage{},
	}
	if entry, ok := s.Orchestrator.PeekChatThread(id); ok {
		view.Messages = entry.Payload.Messages
		view.UpdatedAt = &entry.CachedAt
	}
	c.JSON(http.StatusOK, view)
}

// chatView is the JSON shape of a thread.
type chatView struct {
	ArticleID string              `json:"article_id"`
	State     string              `json:"state"`
	Messages  []cache.ChatMessage `json:"messages"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
}

type chatRequest struct {
	Text      string `json:"text" binding:"required"`
	WebSearch bool   `json:"web_search"`
}

// handlePostChat sends one message. A failed generation still returns the
// thread, with the error appended as the assistant's reply.
func (s *server) handlePostChat(c *gin.Context) {
	article, ok := s.article(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	reply, err := s.Orchestrator.SendChatMessage(c.Request.Context(), article, nil, req.Text,
		orchestrator.ChatOptions{UseWebSearch: req.WebSearch})
	if err != nil && len(reply.Thread.Messages) == 0 {
		errorJSON(c, statusFor(err), err)
		return
	}

	body := gin.H{"reply": reply.Message, "messages": reply.Thread.Messages}
	if err != nil {
		body["error"] = err.Error()
		c.JSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, body)
}
