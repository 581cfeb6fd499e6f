package rssfeeds

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"newsdesk/types"
)

const (
	DefaultMaxItems    = 30
	DefaultConcurrency = 4
	DefaultFeedTimeout = 10 * time.Second
)

// FeedResult is the outcome of fetching one source. Err is set when the
// source could not be fetched; Articles is then empty.
type FeedResult struct {
	Source    types.Source    `json:"source"`
	Articles  []types.Article `json:"articles"`
	FetchedAt time.Time       `json:"fetched_at"`
	Err       error           `json:"-"`
}

// FetchOptions bounds a multi-source fetch.
type FetchOptions struct {
	MaxItems    int
	Concurrency int
	Timeout     time.Duration
}

func applyFetchDefaults(o FetchOptions) FetchOptions {
	if o.MaxItems <= 0 {
		o.MaxItems = DefaultMaxItems
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultFeedTimeout
	}
	return o
}

// FetchAll fetches every source concurrently. One source failing never
// affects the others; results are returned in source order.
func FetchAll(ctx context.Context, sources []types.Source, opts FetchOptions) []FeedResult {
	opts = applyFetchDefaults(opts)
	results := make([]FeedResult, len(sources))

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, opts.Timeout)
			defer cancel()

			articles, err := FetchFeed(fctx, src, opts.MaxItems)
			results[i] = FeedResult{
				Source:    src,
				Articles:  articles,
				FetchedAt: time.Now(),
				Err:       err,
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// FetchFeed retrieves and parses an RSS/Atom feed, returning at most maxCount articles
func FetchFeed(ctx context.Context, src types.Source, maxCount int) ([]types.Article, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", src.URL, err)
	}

	sourceName := src.Name
	if sourceName == "" {
		sourceName = feed.Title
	}

	count := min(len(feed.Items), maxCount)
	articles := make([]types.Article, 0, count)
	fetchedAt := time.Now()

	for _, item := range feed.Items[:count] {
		articles = append(articles, articleFromItem(item, sourceName, fetchedAt))
	}
	return articles, nil
}

func articleFromItem(item *gofeed.Item, sourceName string, fetchedAt time.Time) types.Article {
	// IDs appear in URL paths and object keys, so GUIDs are hashed like links.
	var id string
	switch {
	case item.GUID != "":
		id = types.GenerateID(item.GUID)
	case item.Link != "":
		id = types.GenerateID(item.Link)
	default:
		id = types.GenerateID(sourceName + "|" + item.Title)
	}

	var publishedAt time.Time
	if item.PublishedParsed != nil {
		publishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		publishedAt = *item.UpdatedParsed
	}

	author := ""
	if item.Author != nil {
		author = item.Author.Name
	}

	a := types.Article{
		ID:          id,
		Title:       item.Title,
		Link:        item.Link,
		PublishedAt: publishedAt,
		FetchedAt:   fetchedAt,
		BodyHTML:    item.Content,
		Snippet:     item.Description,
		SourceName:  sourceName,
		Author:      author,
		Categories:  append([]string(nil), item.Categories...),
	}
	if item.Image != nil {
		a.ImageURL = item.Image.URL
	}
	return a
}
