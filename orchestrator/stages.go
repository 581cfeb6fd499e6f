package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"newsdesk/cache"
	"newsdesk/llm"
	"newsdesk/rssfeeds"
	"newsdesk/similarity"
	"newsdesk/types"
)

// workingText is the best text known for an article at a point in the
// pipeline.
type workingText struct {
	text    string
	scraped bool
}

// workingText resolves the text the later stages run on: cached scraped
// content if present, otherwise a fresh scrape when full content was asked
// for, otherwise the feed snippet. Only a cancelled ctx is an error.
func (o *Orchestrator) workingText(ctx context.Context, log *zap.Logger, article types.Article, full bool, report func(Phase)) (workingText, error) {
	fallback := workingText{text: similarity.StripMarkup(article.Text())}
	if article.Link == "" {
		return fallback, nil
	}
	if entry, ok := o.cache.Scraped.Get(article.Link); ok {
		return workingText{text: entry.Payload.PlainText, scraped: true}, nil
	}
	if !full || o.extractor == nil {
		return fallback, nil
	}

	content, ok := o.scrape(ctx, log, article, report)
	if err := ctx.Err(); err != nil {
		return workingText{}, err
	}
	if !ok {
		return fallback, nil
	}
	if _, err := o.cache.Scraped.Set(ctx, article.Link, content); err != nil {
		log.Warn("failed to persist scraped content", zap.Error(err))
	}
	return workingText{text: content.PlainText, scraped: true}, nil
}

// bestText is the cached scrape of the article page, else its feed text.
func (o *Orchestrator) bestText(article types.Article) string {
	if article.Link != "" {
		if entry, ok := o.cache.Scraped.Get(article.Link); ok {
			return entry.Payload.PlainText
		}
	}
	return similarity.StripMarkup(article.Text())
}

// scrape extracts the article page, then at most one link embedded in the
// article body if the page yields nothing usable.
func (o *Orchestrator) scrape(ctx context.Context, log *zap.Logger, article types.Article, report func(Phase)) (cache.ScrapedContent, bool) {
	report(Scraping{URL: article.Link})
	content, err := o.extract(ctx, article.Link)
	if err == nil {
		return content, true
	}
	o.metrics.SoftFailure(PhaseScraping)
	log.Warn("scrape failed", zap.String("url", article.Link), zap.Error(err))
	if ctx.Err() != nil {
		return cache.ScrapedContent{}, false
	}

	alt, ok := rssfeeds.FallbackLink(article.BodyHTML+"\n"+article.Snippet, article.Link)
	if !ok {
		return cache.ScrapedContent{}, false
	}
	report(Scraping{URL: alt, Fallback: true})
	content, err = o.extract(ctx, alt)
	if err != nil {
		o.metrics.SoftFailure(PhaseScraping)
		log.Warn("fallback scrape failed", zap.String("url", alt), zap.Error(err))
		return cache.ScrapedContent{}, false
	}
	return content, true
}

func (o *Orchestrator) extract(ctx context.Context, url string) (cache.ScrapedContent, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ExternalTimeout)
	defer cancel()

	content, err := o.extractor.Extract(ctx, url)
	if err != nil {
		return cache.ScrapedContent{}, err
	}
	content.PlainText = strings.TrimSpace(content.PlainText)
	if n := utf8.RuneCountInString(content.PlainText); n < o.cfg.MinScrapedLength {
		return cache.ScrapedContent{}, fmt.Errorf("%s: %d characters: %w", url, n, ErrContentTooShort)
	}
	if content.SourceURL == "" {
		content.SourceURL = url
	}
	return content, nil
}

func (o *Orchestrator) findRelated(article types.Article, text string, exclude []string) []cache.RelatedRef {
	if o.articles == nil {
		return nil
	}
	pool := o.articles.Snapshot().All()
	if len(pool) == 0 {
		return nil
	}

	opts := o.cfg.Related
	if len(exclude) > 0 {
		merged := make(map[string]struct{}, len(opts.Exclude)+len(exclude))
		for id := range opts.Exclude {
			merged[id] = struct{}{}
		}
		for _, id := range exclude {
			merged[id] = struct{}{}
		}
		opts.Exclude = merged
	}

	sig := similarity.ExtractKeywords(article.Title + "\n" + text)
	candidates := similarity.FindRelatedBySignature(article.ID, sig, pool, opts)
	refs := make([]cache.RelatedRef, 0, len(candidates))
	for _, c := range candidates {
		refs = append(refs, cache.RelatedRef{
			ID:      c.Article.ID,
			Title:   c.Article.Title,
			Link:    c.Article.Link,
			Score:   c.Score,
			Matched: c.Matched,
		})
	}
	return refs
}

// searchQuery is the leading title keywords, or the bare title when it has
// none.
func (o *Orchestrator) searchQuery(article types.Article) string {
	keywords := similarity.ExtractKeywords(article.Title)
	if len(keywords) == 0 {
		return strings.TrimSpace(article.Title)
	}
	if len(keywords) > o.cfg.QueryKeywords {
		keywords = keywords[:o.cfg.QueryKeywords]
	}
	return strings.Join(keywords, " ")
}

func (o *Orchestrator) searchWeb(ctx context.Context, log *zap.Logger, query string) []cache.WebRef {
	if o.searcher == nil || query == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ExternalTimeout)
	defer cancel()

	results, err := o.searcher.Search(ctx, query, o.cfg.SearchResults)
	if err != nil {
		o.metrics.SoftFailure(PhaseSearchingWeb)
		log.Warn("web search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if len(results) > o.cfg.SearchResults {
		results = results[:o.cfg.SearchResults]
	}
	return results
}

// generate calls the language model. Its error is returned as is.
func (o *Orchestrator) generate(ctx context.Context, messages []llm.Message) (string, error) {
	if o.generator == nil {
		return "", ErrNoGenerator
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ExternalTimeout)
	defer cancel()

	text, err := o.generator.Generate(ctx, messages, o.cfg.Model)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}
