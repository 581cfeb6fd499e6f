// Package api serves the dashboard's HTTP interface: grouped article lists,
// research with streamed progress, chat, translation and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"newsdesk/cache"
	"newsdesk/ingestion"
	"newsdesk/orchestrator"
)

// Deps are the services behind the routes. Metrics and CacheStats are
// optional.
type Deps struct {
	Board        *ingestion.Board
	Refresher    *ingestion.Refresher
	Orchestrator *orchestrator.Orchestrator
	CacheStats   func() cache.Stats
	Metrics      http.Handler
	Logger       *zap.Logger
	// RefreshTimeout bounds a refresh triggered over the API.
	RefreshTimeout time.Duration
	Now            func() time.Time
}

type server struct {
	Deps
}

// NewRouter constructs a Gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RefreshTimeout <= 0 {
		deps.RefreshTimeout = 2 * time.Minute
	}
	if deps.Board == nil && deps.Refresher != nil {
		deps.Board = deps.Refresher.Board()
	}
	s := &server{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	RegisterHealthRoutes(r, s)
	RegisterGroupRoutes(r, s)
	RegisterResearchRoutes(r, s)
	RegisterChatRoutes(r, s)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func errorJSON(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
