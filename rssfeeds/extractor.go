package rssfeeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"newsdesk/cache"
)

const (
	extractorTimeout = 30 * time.Second
	maxPageBytes     = 5 << 20
	userAgent        = "Mozilla/5.0 (compatible; newsdesk/1.0; +https://github.com/newsdesk)"
)

// ErrNoContent is returned when a page has no extractable primary content.
var ErrNoContent = errors.New("page has no primary content")

// Extractor fetches a page and extracts its main content with readability.
// Concurrent requests for the same URL share one fetch.
type Extractor struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

// ExtractorConfig configures an Extractor. Zero values use defaults.
type ExtractorConfig struct {
	Client  *http.Client
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewExtractor(cfg ExtractorConfig) *Extractor {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = extractorTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Extractor{client: cfg.Client, timeout: cfg.Timeout, logger: cfg.Logger}
}

// Extract returns the primary content of the page at pageURL. The caller's
// context bounds how long it waits. The shared fetch is bounded by the
// extractor timeout, not by any single caller's context.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (cache.ScrapedContent, error) {
	if pageURL == "" {
		return cache.ScrapedContent{}, fmt.Errorf("article URL is empty")
	}

	ch := e.group.DoChan(pageURL, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		return e.extract(fctx, pageURL)
	})

	select {
	case <-ctx.Done():
		return cache.ScrapedContent{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return cache.ScrapedContent{}, res.Err
		}
		return res.Val.(cache.ScrapedContent), nil
	}
}

func (e *Extractor) extract(ctx context.Context, pageURL string) (cache.ScrapedContent, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return cache.ScrapedContent{}, fmt.Errorf("invalid URL %q: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return cache.ScrapedContent{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return cache.ScrapedContent{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cache.ScrapedContent{}, fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsed)
	if err != nil {
		return cache.ScrapedContent{}, fmt.Errorf("readability extraction failed: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return cache.ScrapedContent{}, ErrNoContent
	}

	e.logger.Debug("extracted page", zap.String("url", pageURL), zap.Int("length", len(text)))
	return cache.ScrapedContent{
		Title:     article.Title,
		HTMLBody:  article.Content,
		PlainText: text,
		Excerpt:   article.Excerpt,
		Byline:    article.Byline,
		SiteName:  article.SiteName,
		Length:    len(text),
		SourceURL: pageURL,
	}, nil
}
