// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records cache, research, ingestion and notification activity. It
// satisfies cache.Observer and orchestrator.Recorder.
type Metrics struct {
	gatherer prometheus.Gatherer

	cacheLookups     *prometheus.CounterVec
	phases           *prometheus.CounterVec
	softFailures     *prometheus.CounterVec
	research         *prometheus.CounterVec
	researchDuration prometheus.Histogram
	feedFetches      *prometheus.CounterVec
	groupArticles    *prometheus.GaugeVec
	notifications    *prometheus.CounterVec
}

// New registers the instruments with reg. Passing nil uses a fresh registry,
// which keeps tests independent of the global default.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_cache_lookups_total",
			Help: "Cache lookups by kind and result",
		}, []string{"kind", "result"}),
		phases: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_research_phases_total",
			Help: "Research phase transitions by phase",
		}, []string{"phase"}),
		softFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_research_soft_failures_total",
			Help: "Research stages that failed and were skipped",
		}, []string{"stage"}),
		research: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_research_requests_total",
			Help: "Research requests by outcome",
		}, []string{"outcome"}),
		researchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsdesk_research_duration_seconds",
			Help:    "Wall time of research requests",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
		feedFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_feed_fetches_total",
			Help: "Feed fetches by group and result",
		}, []string{"group", "result"}),
		groupArticles: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "newsdesk_group_articles",
			Help: "Articles held per group after the last refresh",
		}, []string{"group"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_notifications_total",
			Help: "Completion notifications by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) CacheHit(kind string)  { m.cacheLookups.WithLabelValues(kind, "hit").Inc() }
func (m *Metrics) CacheMiss(kind string) { m.cacheLookups.WithLabelValues(kind, "miss").Inc() }

func (m *Metrics) PhaseEntered(phase string) { m.phases.WithLabelValues(phase).Inc() }
func (m *Metrics) SoftFailure(stage string)  { m.softFailures.WithLabelValues(stage).Inc() }

func (m *Metrics) ResearchFinished(outcome string, elapsed time.Duration) {
	m.research.WithLabelValues(outcome).Inc()
	m.researchDuration.Observe(elapsed.Seconds())
}

// FeedFetched counts one source fetch for a group.
func (m *Metrics) FeedFetched(group string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.feedFetches.WithLabelValues(group, result).Inc()
}

// GroupSize records how many articles a group holds.
func (m *Metrics) GroupSize(group string, n int) {
	m.groupArticles.WithLabelValues(group).Set(float64(n))
}

// GroupRemoved drops the gauge of a group that no longer exists.
func (m *Metrics) GroupRemoved(group string) {
	m.groupArticles.DeleteLabelValues(group)
}

// Notification counts a completion notification as sent, throttled or failed.
func (m *Metrics) Notification(result string) {
	m.notifications.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
