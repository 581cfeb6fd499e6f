package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"newsdesk/cache"
	"newsdesk/types"
)

// ErrThrottled is returned when a notification is dropped by rate limiting.
var ErrThrottled = errors.New("notification throttled")

const (
	excerptLength = 280
	// maxTrackedItems bounds the per-article limiter table before idle
	// entries are pruned.
	maxTrackedItems = 1024
)

// ResearchComplete is the event published when a new summary is committed.
type ResearchComplete struct {
	ArticleID   string    `json:"article_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Excerpt     string    `json:"excerpt"`
	Related     int       `json:"related"`
	WebResults  int       `json:"web_results"`
	CompletedAt time.Time `json:"completed_at"`
}

// NotificationRecorder receives notification outcomes.
type NotificationRecorder interface {
	Notification(result string)
}

type nopNotificationRecorder struct{}

func (nopNotificationRecorder) Notification(string) {}

type NotifierConfig struct {
	Brokers []string
	Topic   string
	// GlobalInterval is the minimum time between any two notifications.
	GlobalInterval time.Duration
	// PerItemInterval is the minimum time between two notifications for the
	// same article.
	PerItemInterval time.Duration
	Logger          *zap.Logger
	Metrics         NotificationRecorder
}

// Notifier publishes ResearchComplete events, dropping those that exceed
// either the global or the per-article rate. A zero interval disables that
// limit.
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
	metrics  NotificationRecorder
	now      func() time.Time

	mu      sync.Mutex
	global  *rate.Limiter
	perItem map[string]*rate.Limiter
	itemInt time.Duration
}

func NewNotifier(cfg NotifierConfig) (*Notifier, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return newNotifier(producer, cfg), nil
}

func newNotifier(producer sarama.SyncProducer, cfg NotifierConfig) *Notifier {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopNotificationRecorder{}
	}
	n := &Notifier{
		producer: producer,
		topic:    cfg.Topic,
		logger:   cfg.Logger.With(zap.String("topic", cfg.Topic)),
		metrics:  cfg.Metrics,
		now:      time.Now,
		perItem:  make(map[string]*rate.Limiter),
		itemInt:  cfg.PerItemInterval,
	}
	if cfg.GlobalInterval > 0 {
		n.global = rate.NewLimiter(rate.Every(cfg.GlobalInterval), 1)
	}
	return n
}

// NotifyResearchComplete publishes the event for a new summary unless it is
// throttled, in which case ErrThrottled is returned and nothing is sent.
func (n *Notifier) NotifyResearchComplete(ctx context.Context, article types.Article, summary cache.Summary) error {
	if !n.allow(article.ID) {
		n.metrics.Notification("throttled")
		return ErrThrottled
	}

	event := ResearchComplete{
		ArticleID:   article.ID,
		Title:       article.Title,
		Link:        article.Link,
		Excerpt:     excerpt(summary.Text, excerptLength),
		Related:     len(summary.Related),
		WebResults:  len(summary.Web),
		CompletedAt: n.now().UTC(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	partition, offset, err := n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(article.ID),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		n.metrics.Notification("failed")
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	n.metrics.Notification("sent")
	n.logger.Debug("notification sent",
		zap.String("article_id", article.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// allow consumes a token from both limiters, or from neither.
func (n *Notifier) allow(articleID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()

	if n.global != nil && n.global.TokensAt(now) < 1 {
		return false
	}
	var item *rate.Limiter
	if n.itemInt > 0 {
		item = n.perItem[articleID]
		if item == nil {
			n.prune(now)
			item = rate.NewLimiter(rate.Every(n.itemInt), 1)
			n.perItem[articleID] = item
		}
		if item.TokensAt(now) < 1 {
			return false
		}
		item.AllowN(now, 1)
	}
	if n.global != nil {
		n.global.AllowN(now, 1)
	}
	return true
}

// prune forgets per-article limiters that have fully refilled once the table
// is large. A refilled limiter behaves exactly like a new one.
func (n *Notifier) prune(now time.Time) {
	if len(n.perItem) < maxTrackedItems {
		return
	}
	for id, lim := range n.perItem {
		if lim.TokensAt(now) >= 1 {
			delete(n.perItem, id)
		}
	}
}

// Close flushes and closes the producer.
func (n *Notifier) Close() error {
	return n.producer.Close()
}

func excerpt(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "…"
}
