package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"newsdesk/cache"
	"newsdesk/types"
)

// ArchivedSummary is the document written for every committed summary.
type ArchivedSummary struct {
	ArticleID   string        `json:"article_id"`
	Title       string        `json:"title"`
	Link        string        `json:"link"`
	SourceName  string        `json:"source_name,omitempty"`
	PublishedAt time.Time     `json:"published_at,omitempty"`
	Summary     cache.Summary `json:"summary"`
	ArchivedAt  time.Time     `json:"archived_at"`
}

// SummaryArchiver keeps a copy of each research summary as JSON in a bucket,
// one object per article under prefix.
type SummaryArchiver struct {
	bucket *Bucket
	prefix string
	now    func() time.Time
}

func NewSummaryArchiver(bucket *Bucket, prefix string) *SummaryArchiver {
	prefix = strings.Trim(prefix, "/")
	return &SummaryArchiver{bucket: bucket, prefix: prefix, now: time.Now}
}

func (a *SummaryArchiver) key(articleID string) string {
	return path.Join(a.prefix, articleID+".json")
}

// ArchiveSummary uploads the summary, replacing any earlier copy.
func (a *SummaryArchiver) ArchiveSummary(ctx context.Context, article types.Article, summary cache.Summary) error {
	doc := ArchivedSummary{
		ArticleID:   article.ID,
		Title:       article.Title,
		Link:        article.Link,
		SourceName:  article.SourceName,
		PublishedAt: article.PublishedAt,
		Summary:     summary,
		ArchivedAt:  a.now().UTC(),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := a.bucket.Put(ctx, a.key(article.ID), bytes.NewReader(body), "application/json"); err != nil {
		return fmt.Errorf("failed to archive summary %s: %w", article.ID, err)
	}
	return nil
}

// Fetch returns the archived summary of an article. A summary that was never
// archived yields ErrObjectNotFound.
func (a *SummaryArchiver) Fetch(ctx context.Context, articleID string) (ArchivedSummary, error) {
	body, err := a.bucket.Get(ctx, a.key(articleID))
	if err != nil {
		return ArchivedSummary{}, err
	}
	defer body.Close()

	var doc ArchivedSummary
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return ArchivedSummary{}, fmt.Errorf("failed to decode archived summary %s: %w", articleID, err)
	}
	return doc, nil
}

// ArticleIDs lists the articles with an archived summary, sorted.
func (a *SummaryArchiver) ArticleIDs(ctx context.Context) ([]string, error) {
	prefix := a.prefix
	if prefix != "" {
		prefix += "/"
	}
	keys, err := a.bucket.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := strings.CutSuffix(path.Base(k), ".json"); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
