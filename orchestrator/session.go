package orchestrator

import (
	"context"
	"sync"

	"newsdesk/types"
)

// Session follows the article a viewer is focused on. Focusing another
// article cancels the request still running for the previous one, so its
// result is discarded rather than committed.
type Session struct {
	orch   *Orchestrator
	parent context.Context

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
}

// NewSession returns a Session whose requests all derive from ctx.
func (o *Orchestrator) NewSession(ctx context.Context) *Session {
	return &Session{orch: o, parent: ctx}
}

// Focus makes article the current one and starts research on it.
func (s *Session) Focus(article types.Article, opts ResearchOptions) (<-chan Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.current = article.ID

	ctx, cancel := context.WithCancel(s.parent)
	phases, err := s.orch.RequestResearch(ctx, article, opts)
	if err != nil {
		cancel()
		return nil, err
	}
	s.cancel = cancel
	return phases, nil
}

// Current returns the ID of the focused article.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close cancels any in-flight request.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.current = ""
}
