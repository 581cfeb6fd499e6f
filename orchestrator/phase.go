package orchestrator

import (
	"time"

	"newsdesk/cache"
)

// Phase is one step of a research request. The concrete types are Idle,
// Scraping, FindingRelated, SearchingWeb, Generating, Done and Failed; a
// request's phase stream always ends with exactly one Done or Failed.
type Phase interface {
	Name() string
	phase()
}

// Phase names as reported by Name.
const (
	PhaseIdle           = "idle"
	PhaseScraping       = "scraping"
	PhaseFindingRelated = "finding-related"
	PhaseSearchingWeb   = "searching-web"
	PhaseGenerating     = "generating"
	PhaseDone           = "done"
	PhaseError          = "error"
)

// Idle is the first phase of every accepted request, sent before any work
// starts.
type Idle struct{}

// Scraping is entered for the article link and again, with Fallback set, if
// an embedded link is tried after the first extraction failed.
type Scraping struct {
	URL      string
	Fallback bool
}

type FindingRelated struct{}

type SearchingWeb struct {
	Query string
}

type Generating struct {
	Related    int
	WebResults int
	Scraped    bool
}

type Done struct {
	Result Result
}

// Failed carries the error that ended the request. Provider errors are
// passed through unmodified.
type Failed struct {
	Err error
}

func (Idle) Name() string           { return PhaseIdle }
func (Scraping) Name() string       { return PhaseScraping }
func (FindingRelated) Name() string { return PhaseFindingRelated }
func (SearchingWeb) Name() string   { return PhaseSearchingWeb }
func (Generating) Name() string     { return PhaseGenerating }
func (Done) Name() string           { return PhaseDone }
func (Failed) Name() string         { return PhaseError }

func (Idle) phase()           {}
func (Scraping) phase()       {}
func (FindingRelated) phase() {}
func (SearchingWeb) phase()   {}
func (Generating) phase()     {}
func (Done) phase()           {}
func (Failed) phase()         {}

// Terminal reports whether p ends a phase stream.
func Terminal(p Phase) bool {
	switch p.(type) {
	case Done, Failed:
		return true
	}
	return false
}

// Result is the outcome of a completed research request.
type Result struct {
	RunID       string        `json:"run_id"`
	ArticleID   string        `json:"article_id"`
	Summary     cache.Summary `json:"summary"`
	FromCache   bool          `json:"from_cache"`
	Scraped     bool          `json:"scraped"`
	GeneratedAt time.Time     `json:"generated_at"`
}
