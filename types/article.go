package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Article represents a single feed item as it appears in the dashboard.
// Articles are immutable once fetched; the next ingestion cycle supersedes them.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	BodyHTML    string    `json:"body_html,omitempty"`
	Snippet     string    `json:"snippet,omitempty"`
	SourceName  string    `json:"source_name,omitempty"`
	Author      string    `json:"author,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// Text returns the best available body text for the article, preferring the
// full body over the snippet. The result may contain markup.
func (a Article) Text() string {
	if strings.TrimSpace(a.BodyHTML) != "" {
		return a.BodyHTML
	}
	return a.Snippet
}

// Source is a single feed subscription.
type Source struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Group is a named set of sources whose articles are shown together.
type Group struct {
	Name    string   `json:"name" yaml:"name"`
	Sources []Source `json:"sources" yaml:"sources"`
}

// GenerateID creates a short, stable ID by hashing the provided input
func GenerateID(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}
