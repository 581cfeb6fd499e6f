package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"newsdesk/deduplication"
	"newsdesk/rssfeeds"
	"newsdesk/types"
)

var (
	ErrUnknownGroup   = errors.New("unknown group")
	ErrAllSourcesDown = errors.New("every source of the group failed")
)

const defaultHistorySize = 50

// FetchFunc fetches a set of sources. rssfeeds.FetchAll is the production
// implementation.
type FetchFunc func(ctx context.Context, sources []types.Source, opts rssfeeds.FetchOptions) []rssfeeds.FeedResult

// FeedRecorder receives ingestion metrics.
type FeedRecorder interface {
	FeedFetched(group string, err error)
	GroupSize(group string, n int)
	GroupRemoved(group string)
}

type nopFeedRecorder struct{}

func (nopFeedRecorder) FeedFetched(string, error) {}
func (nopFeedRecorder) GroupSize(string, int)     {}
func (nopFeedRecorder) GroupRemoved(string)       {}

// SourceFailure names a source that could not be fetched.
type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Report describes one group refresh.
type Report struct {
	Group     string          `json:"group"`
	Sources   int             `json:"sources"`
	Articles  int             `json:"articles"`
	Failed    []SourceFailure `json:"failed,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Error     string          `json:"error,omitempty"`
}

type RefresherConfig struct {
	Board        *Board
	Groups       []types.Group
	Fetch        FetchFunc
	FetchOptions rssfeeds.FetchOptions
	Logger       *zap.Logger
	Metrics      FeedRecorder
	// HistorySize is how many reports History keeps.
	HistorySize int
}

// Refresher fetches groups of feeds and publishes them on a Board.
type Refresher struct {
	board   *Board
	fetch   FetchFunc
	opts    rssfeeds.FetchOptions
	logger  *zap.Logger
	metrics FeedRecorder

	mu      sync.RWMutex
	groups  []types.Group
	history []Report
	maxHist int

	running atomic.Int32
}

func NewRefresher(cfg RefresherConfig) *Refresher {
	if cfg.Board == nil {
		cfg.Board = NewBoard()
	}
	if cfg.Fetch == nil {
		cfg.Fetch = rssfeeds.FetchAll
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopFeedRecorder{}
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	return &Refresher{
		board:   cfg.Board,
		fetch:   cfg.Fetch,
		opts:    cfg.FetchOptions,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		groups:  cloneGroups(cfg.Groups),
		maxHist: cfg.HistorySize,
	}
}

// Board returns the board the refresher publishes to.
func (r *Refresher) Board() *Board { return r.board }

// Groups returns the current subscriptions.
func (r *Refresher) Groups() []types.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneGroups(r.groups)
}

// SetSubscriptions replaces the subscriptions. Groups that are no longer
// subscribed are removed from the board; new groups appear on their first
// refresh.
func (r *Refresher) SetSubscriptions(groups []types.Group) {
	r.mu.Lock()
	r.groups = cloneGroups(groups)
	keep := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		keep[g.Name] = struct{}{}
	}
	r.mu.Unlock()

	for _, name := range r.board.Snapshot().Groups() {
		if _, ok := keep[name]; !ok {
			r.board.RemoveGroup(name)
			r.metrics.GroupRemoved(name)
			r.logger.Info("group unsubscribed", zap.String("group", name))
		}
	}
}

// Refreshing reports whether a refresh is in progress.
func (r *Refresher) Refreshing() bool {
	return r.running.Load() > 0
}

// RefreshGroup fetches every source of a group, normalizes the combined
// articles and replaces the group on the board. Sources that fail are listed
// in the report; when all of them fail the group keeps its previous articles.
func (r *Refresher) RefreshGroup(ctx context.Context, group string) (Report, error) {
	g, ok := r.group(group)
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}

	r.running.Add(1)
	defer r.running.Add(-1)

	report := Report{Group: g.Name, Sources: len(g.Sources), StartedAt: time.Now()}
	log := r.logger.With(zap.String("group", g.Name))

	results := r.fetch(ctx, g.Sources, r.opts)
	lists := make([][]types.Article, 0, len(results))
	for _, res := range results {
		r.metrics.FeedFetched(g.Name, res.Err)
		if res.Err != nil {
			log.Warn("feed fetch failed", zap.String("source", res.Source.Name), zap.Error(res.Err))
			report.Failed = append(report.Failed, SourceFailure{Source: res.Source.Name, Error: res.Err.Error()})
			continue
		}
		lists = append(lists, res.Articles)
	}

	var err error
	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
	case len(g.Sources) > 0 && len(report.Failed) == len(g.Sources):
		err = ErrAllSourcesDown
	default:
		articles := deduplication.Normalize(lists...)
		r.board.ReplaceGroup(g.Name, articles)
		if kept, ok := r.board.Snapshot().Articles(g.Name); ok {
			report.Articles = len(kept)
		}
		r.metrics.GroupSize(g.Name, report.Articles)
	}

	report.Duration = time.Since(report.StartedAt)
	if err != nil {
		report.Error = err.Error()
		log.Error("group refresh failed", zap.Error(err))
	} else {
		log.Info("group refreshed",
			zap.Int("articles", report.Articles),
			zap.Int("failed_sources", len(report.Failed)),
			zap.Duration("duration", report.Duration))
	}
	r.record(report)
	return report, err
}

// RefreshAll refreshes every subscribed group in turn. A failing group does
// not stop the others.
func (r *Refresher) RefreshAll(ctx context.Context) []Report {
	groups := r.Groups()
	reports := make([]Report, 0, len(groups))
	for _, g := range groups {
		if ctx.Err() != nil {
			break
		}
		report, err := r.RefreshGroup(ctx, g.Name)
		if err != nil && report.Group == "" {
			report = Report{Group: g.Name, Error: err.Error()}
		}
		reports = append(reports, report)
	}
	return reports
}

// History returns the most recent refresh reports, oldest first.
func (r *Refresher) History() []Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Report(nil), r.history...)
}

func (r *Refresher) record(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, report)
	if len(r.history) > r.maxHist {
		r.history = r.history[len(r.history)-r.maxHist:]
	}
}

func (r *Refresher) group(name string) (types.Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if g.Name == name {
			return g, true
		}
	}
	return types.Group{}, false
}

func cloneGroups(groups []types.Group) []types.Group {
	out := make([]types.Group, len(groups))
	for i, g := range groups {
		out[i] = types.Group{Name: g.Name, Sources: append([]types.Source(nil), g.Sources...)}
	}
	return out
}
