package events

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"newsdesk/orchestrator"
	"newsdesk/types"
)

// ResearchRequest asks for an article to be researched in the background so
// that its summary is cached before anyone opens it.
type ResearchRequest struct {
	ArticleID   string `json:"article_id"`
	Link        string `json:"link,omitempty"`
	FullContent bool   `json:"full_content"`
	Force       bool   `json:"force"`
}

// ArticleFinder resolves requests to articles on the board.
type ArticleFinder interface {
	Find(id string) (types.Article, bool)
	FindByLink(link string) (types.Article, bool)
}

// Researcher runs the research pipeline synchronously.
type Researcher interface {
	Research(ctx context.Context, article types.Article, opts orchestrator.ResearchOptions, emit func(orchestrator.Phase)) (orchestrator.Result, error)
}

// NewResearchHandler builds the handler for the research request topic.
// Requests for unknown articles, or that can never succeed, are marked and
// dropped; a failed generation is left unmarked for redelivery.
func NewResearchHandler(finder ArticleFinder, researcher Researcher, logger *zap.Logger) *TypedMessageHandler[ResearchRequest] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypedMessageHandler[ResearchRequest]{
		AlwaysMark: true,
		Logger:     logger,
		Validate: func(req *ResearchRequest) bool {
			return strings.TrimSpace(req.ArticleID) != "" || strings.TrimSpace(req.Link) != ""
		},
		Process: func(ctx context.Context, req *ResearchRequest) error {
			article, ok := finder.Find(req.ArticleID)
			if !ok && req.Link != "" {
				article, ok = finder.FindByLink(req.Link)
			}
			if !ok {
				logger.Info("research request for unknown article dropped",
					zap.String("article_id", req.ArticleID), zap.String("link", req.Link))
				return nil
			}

			res, err := researcher.Research(ctx, article, orchestrator.ResearchOptions{
				FullContent: req.FullContent,
				Force:       req.Force,
			}, nil)
			switch {
			case errors.Is(err, orchestrator.ErrNoGenerator), errors.Is(err, orchestrator.ErrInvalidArticle):
				logger.Warn("research request cannot be served", zap.String("article_id", article.ID), zap.Error(err))
				return nil
			case err != nil:
				return err
			}
			logger.Info("background research complete",
				zap.String("article_id", article.ID),
				zap.String("run_id", res.RunID),
				zap.Bool("from_cache", res.FromCache))
			return nil
		},
	}
}
