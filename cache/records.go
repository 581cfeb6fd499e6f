package cache

import (
	"errors"
	"time"
)

// Kind names one of the three cache namespaces.
type Kind string

const (
	KindScraped Kind = "scraped"
	KindSummary Kind = "summary"
	KindChat    Kind = "chat"
)

// Schema versions of the persisted payloads. Records written with any other
// version are discarded at load time.
const (
	scrapedSchemaVersion = 1
	summarySchemaVersion = 1
	chatSchemaVersion    = 1
)

// ScrapedContent is the extracted primary content of a page, keyed by the
// article link.
type ScrapedContent struct {
	Title     string `json:"title"`
	HTMLBody  string `json:"html_body"`
	PlainText string `json:"plain_text"`
	Excerpt   string `json:"excerpt,omitempty"`
	Byline    string `json:"byline,omitempty"`
	SiteName  string `json:"site_name,omitempty"`
	Length    int    `json:"length"`
	// SourceURL is the page the content was actually taken from. It differs
	// from the cache key when a fallback link was used.
	SourceURL string `json:"source_url,omitempty"`
}

// RelatedRef points at a related article from the working set.
type RelatedRef struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Link    string   `json:"link"`
	Score   float64  `json:"score"`
	Matched []string `json:"matched,omitempty"`
}

// WebRef is a single web search hit.
type WebRef struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Summary is the synthesized research result for an article, keyed by
// article ID.
type Summary struct {
	Text    string       `json:"text"`
	Related []RelatedRef `json:"related"`
	Web     []WebRef     `json:"web"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a follow-up conversation.
type ChatMessage struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	Web  []WebRef  `json:"web,omitempty"`
	At   time.Time `json:"at"`
	// Failed marks an assistant message that reports a generation error.
	Failed bool `json:"failed,omitempty"`
}

// ChatThread is the ordered message history for an article, keyed by
// article ID.
type ChatThread struct {
	Messages []ChatMessage `json:"messages"`
}

var errInvalidPayload = errors.New("invalid payload")

func validateScraped(s ScrapedContent) error {
	if s.PlainText == "" && s.HTMLBody == "" {
		return errInvalidPayload
	}
	return nil
}

func validateSummary(s Summary) error {
	if s.Text == "" {
		return errInvalidPayload
	}
	return nil
}

func validateChat(t ChatThread) error {
	for _, m := range t.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return errInvalidPayload
		}
	}
	return nil
}
