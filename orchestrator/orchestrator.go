// Package orchestrator runs the research pipeline for a single article:
// optional scraping, related-article lookup in the working set, web search
// and summary generation, with every expensive result cached.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"newsdesk/cache"
	"newsdesk/llm"
	"newsdesk/similarity"
	"newsdesk/types"
)

// Defaults for Config.
const (
	DefaultExternalTimeout  = 10 * time.Second
	DefaultMinScrapedLength = 200
	DefaultSearchResults    = 5
	DefaultQueryKeywords    = 6
	DefaultMaxPromptChars   = 12000
)

var (
	ErrInvalidArticle   = errors.New("article must have an id and a title")
	ErrNoGenerator      = errors.New("no language model configured")
	ErrContentTooShort  = errors.New("extracted content too short")
	ErrEmptyChatMessage = errors.New("chat message is empty")
)

// Extractor pulls the primary content out of a web page.
type Extractor interface {
	Extract(ctx context.Context, url string) (cache.ScrapedContent, error)
}

// Searcher runs a web search. No results is an empty, successful answer.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]cache.WebRef, error)
}

// Generator produces text from a conversation.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message, cfg llm.ModelConfig) (string, error)
}

// ArticleSource exposes the current working set.
type ArticleSource interface {
	Snapshot() *types.WorkingSet
}

// Archiver receives every newly committed summary.
type Archiver interface {
	ArchiveSummary(ctx context.Context, article types.Article, summary cache.Summary) error
}

// Notifier is told when a research request completes with a fresh summary.
type Notifier interface {
	NotifyResearchComplete(ctx context.Context, article types.Article, summary cache.Summary) error
}

// Recorder receives pipeline metrics.
type Recorder interface {
	PhaseEntered(phase string)
	SoftFailure(stage string)
	ResearchFinished(outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) PhaseEntered(string)                    {}
func (nopRecorder) SoftFailure(string)                     {}
func (nopRecorder) ResearchFinished(string, time.Duration) {}

// Config tunes the pipeline. Zero values use the defaults.
type Config struct {
	// ExternalTimeout bounds every call to an extractor, searcher or generator.
	ExternalTimeout time.Duration
	// MinScrapedLength is the shortest extracted text accepted as a success.
	MinScrapedLength int
	Related          similarity.Options
	SearchResults    int
	// QueryKeywords is how many title keywords make up the search query.
	QueryKeywords  int
	MaxPromptChars int
	Model          llm.ModelConfig
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = DefaultExternalTimeout
	}
	if cfg.MinScrapedLength <= 0 {
		cfg.MinScrapedLength = DefaultMinScrapedLength
	}
	if cfg.SearchResults <= 0 {
		cfg.SearchResults = DefaultSearchResults
	}
	if cfg.QueryKeywords <= 0 {
		cfg.QueryKeywords = DefaultQueryKeywords
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = DefaultMaxPromptChars
	}
	return cfg
}

// Deps are the collaborators of an Orchestrator. Only Cache is required.
type Deps struct {
	Cache     *cache.Cache
	Articles  ArticleSource
	Extractor Extractor
	Searcher  Searcher
	Generator Generator
	Archiver  Archiver
	Notifier  Notifier
	Metrics   Recorder
	Logger    *zap.Logger
	Clock     cache.Clock
}

// Orchestrator runs research and chat requests. It is safe for concurrent
// use; requests for different articles proceed independently.
type Orchestrator struct {
	cfg       Config
	cache     *cache.Cache
	articles  ArticleSource
	extractor Extractor
	searcher  Searcher
	generator Generator
	archiver  Archiver
	notifier  Notifier
	metrics   Recorder
	logger    *zap.Logger
	clock     cache.Clock

	pendingMu sync.Mutex
	pending   map[string]int // article ID -> chat replies in flight
}

// New constructs an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Clock == nil {
		deps.Clock = cache.SystemClock
	}
	return &Orchestrator{
		cfg:       applyConfigDefaults(cfg),
		cache:     deps.Cache,
		articles:  deps.Articles,
		extractor: deps.Extractor,
		searcher:  deps.Searcher,
		generator: deps.Generator,
		archiver:  deps.Archiver,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		clock:     deps.Clock,
		pending:   make(map[string]int),
	}, nil
}

// ResearchOptions controls a single research request.
type ResearchOptions struct {
	// FullContent asks for the article page to be scraped when no cached
	// content exists.
	FullContent bool
	// Force ignores a cached summary and runs the pipeline again.
	Force bool
	// SkipWebSearch leaves web results empty.
	SkipWebSearch bool
	// Exclude lists article IDs never offered as related.
	Exclude []string
}

// RequestResearch validates the request and starts it in the background. The
// returned channel yields Idle once the request is accepted, then every phase
// transition, and is closed after the terminal Done or Failed phase.
// Cancelling ctx abandons the request: nothing more is written to the cache
// and the stream ends with Failed.
func (o *Orchestrator) RequestResearch(ctx context.Context, article types.Article, opts ResearchOptions) (<-chan Phase, error) {
	if err := o.validate(article, opts); err != nil {
		return nil, err
	}

	// a request emits at most seven phases, so sends never block
	ch := make(chan Phase, 8)
	o.metrics.PhaseEntered(PhaseIdle)
	ch <- Idle{}
	go func() {
		defer close(ch)
		res, err := o.Research(ctx, article, opts, func(p Phase) { ch <- p })
		if err != nil {
			ch <- Failed{Err: err}
			return
		}
		ch <- Done{Result: res}
	}()
	return ch, nil
}

func (o *Orchestrator) validate(article types.Article, opts ResearchOptions) error {
	if strings.TrimSpace(article.ID) == "" || strings.TrimSpace(article.Title) == "" {
		return ErrInvalidArticle
	}
	if o.generator == nil {
		if _, cached := o.PeekCachedSummary(article.ID); opts.Force || !cached {
			return ErrNoGenerator
		}
	}
	return nil
}

// Research runs the pipeline synchronously, reporting every non-terminal
// phase to emit. The article is captured by value, so every cache write is
// keyed by the identity it had when the request started.
func (o *Orchestrator) Research(ctx context.Context, article types.Article, opts ResearchOptions, emit func(Phase)) (res Result, err error) {
	if err := o.validate(article, opts); err != nil {
		return Result{}, err
	}
	if emit == nil {
		emit = func(Phase) {}
	}

	runID := uuid.NewString()
	started := time.Now()
	log := o.logger.With(zap.String("run_id", runID), zap.String("article_id", article.ID))
	report := func(p Phase) {
		o.metrics.PhaseEntered(p.Name())
		emit(p)
	}

	defer func() {
		outcome := "done"
		switch {
		case err != nil && ctx.Err() != nil:
			outcome = "canceled"
		case err != nil:
			outcome = "error"
		case res.FromCache:
			outcome = "cached"
		}
		o.metrics.ResearchFinished(outcome, time.Since(started))
	}()

	if !opts.Force {
		if entry, ok := o.cache.Summaries.Get(article.ID); ok {
			log.Debug("serving cached summary")
			return Result{
				RunID:       runID,
				ArticleID:   article.ID,
				Summary:     entry.Payload,
				FromCache:   true,
				GeneratedAt: entry.CachedAt,
			}, nil
		}
	}

	working, err := o.workingText(ctx, log, article, opts.FullContent, report)
	if err != nil {
		return Result{}, err
	}

	report(FindingRelated{})
	related := o.findRelated(article, working.text, opts.Exclude)

	query := o.searchQuery(article)
	report(SearchingWeb{Query: query})
	var web []cache.WebRef
	if !opts.SkipWebSearch {
		web = o.searchWeb(ctx, log, query)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	report(Generating{Related: len(related), WebResults: len(web), Scraped: working.scraped})
	text, err := o.generate(ctx, summaryMessages(article, working, related, web, o.cfg.MaxPromptChars))
	if err != nil {
		log.Error("summary generation failed", zap.Error(err))
		return Result{}, err
	}

	summary := cache.Summary{Text: text, Related: related, Web: web}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	entry, err := o.cache.Summaries.Set(ctx, article.ID, summary)
	if err != nil {
		log.Warn("failed to persist summary", zap.Error(err))
	}
	o.publish(ctx, log, article, summary)

	log.Info("research complete",
		zap.Int("related", len(related)),
		zap.Int("web_results", len(web)),
		zap.Bool("scraped", working.scraped),
		zap.Duration("elapsed", time.Since(started)))

	return Result{
		RunID:       runID,
		ArticleID:   article.ID,
		Summary:     summary,
		Scraped:     working.scraped,
		GeneratedAt: entry.CachedAt,
	}, nil
}

// publish hands a new summary to the archiver and notifier. Both are best
// effort.
func (o *Orchestrator) publish(ctx context.Context, log *zap.Logger, article types.Article, summary cache.Summary) {
	if o.archiver != nil {
		actx, cancel := context.WithTimeout(ctx, o.cfg.ExternalTimeout)
		if err := o.archiver.ArchiveSummary(actx, article, summary); err != nil {
			log.Warn("failed to archive summary", zap.Error(err))
		}
		cancel()
	}
	if o.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, o.cfg.ExternalTimeout)
		if err := o.notifier.NotifyResearchComplete(nctx, article, summary); err != nil {
			log.Debug("completion notification not sent", zap.Error(err))
		}
		cancel()
	}
}

// PeekCachedSummary returns the fresh cached summary for an article, if any.
func (o *Orchestrator) PeekCachedSummary(articleID string) (cache.Entry[cache.Summary], bool) {
	return o.cache.Summaries.Get(articleID)
}

// PeekScrapedContent returns the fresh scraped content for a link, if any.
func (o *Orchestrator) PeekScrapedContent(link string) (cache.Entry[cache.ScrapedContent], bool) {
	return o.cache.Scraped.Get(link)
}

// PeekChatThread returns the fresh chat thread for an article, if any.
func (o *Orchestrator) PeekChatThread(articleID string) (cache.Entry[cache.ChatThread], bool) {
	return o.cache.Chats.Get(articleID)
}
