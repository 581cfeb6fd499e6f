// Package cache holds the expensive intermediate results of article research:
// scraped page content, generated summaries and chat threads. Each namespace
// is a typed Tier with lazy TTL expiry, backed by a durable Store.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is how long an entry stays fresh.
const DefaultTTL = 7 * 24 * time.Hour

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Observer receives cache hit and miss notifications.
type Observer interface {
	CacheHit(kind string)
	CacheMiss(kind string)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)  {}
func (nopObserver) CacheMiss(string) {}

type options struct {
	ttl      time.Duration
	clock    Clock
	logger   *zap.Logger
	observer Observer
}

// Option configures a Cache.
type Option func(*options)

func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// Cache groups the three namespaces over a single Store.
type Cache struct {
	Scraped   *Tier[ScrapedContent]
	Summaries *Tier[Summary]
	Chats     *Tier[ChatThread]

	store  Store
	logger *zap.Logger
}

// TierStats counts the entries of one namespace.
type TierStats struct {
	Fresh   int `json:"fresh"`
	Expired int `json:"expired"`
}

// Stats counts entries per namespace.
type Stats map[Kind]TierStats

// Open builds a Cache and fills it from store. A store that cannot be read,
// or records that cannot be decoded, leave the affected entries out; Open
// itself never fails.
func Open(ctx context.Context, store Store, opts ...Option) *Cache {
	o := options{
		ttl:      DefaultTTL,
		clock:    SystemClock,
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if store == nil {
		store = NewMemoryStore()
	}

	c := &Cache{
		Scraped:   newTier(KindScraped, scrapedSchemaVersion, validateScraped, o, store),
		Summaries: newTier(KindSummary, summarySchemaVersion, validateSummary, o, store),
		Chats:     newTier(KindChat, chatSchemaVersion, validateChat, o, store),
		store:     store,
		logger:    o.logger,
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		o.logger.Warn("cache store unreadable, starting empty", zap.Error(err))
		return c
	}

	c.discard(ctx, KindScraped, c.Scraped.load(records))
	c.discard(ctx, KindSummary, c.Summaries.load(records))
	c.discard(ctx, KindChat, c.Chats.load(records))

	o.logger.Info("cache loaded",
		zap.Int("scraped", c.Scraped.Len()),
		zap.Int("summaries", c.Summaries.Len()),
		zap.Int("chats", c.Chats.Len()))
	return c
}

func (c *Cache) discard(ctx context.Context, kind Kind, keys []string) {
	for _, k := range keys {
		if err := c.store.Delete(ctx, kind, k); err != nil {
			c.logger.Warn("failed to delete discarded record",
				zap.String("kind", string(kind)), zap.String("key", k), zap.Error(err))
		}
	}
}

// Sweep removes expired entries from every namespace. Reads already ignore
// them, so this only reclaims space.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	total := 0
	var firstErr error
	for _, sweep := range []func(context.Context) (int, error){
		c.Scraped.Sweep, c.Summaries.Sweep, c.Chats.Sweep,
	} {
		n, err := sweep(ctx)
		total += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if total > 0 {
		c.logger.Info("cache sweep", zap.Int("removed", total))
	}
	return total, firstErr
}

// Stats reports fresh and expired counts per namespace.
func (c *Cache) Stats() Stats {
	return Stats{
		KindScraped: c.Scraped.stats(),
		KindSummary: c.Summaries.stats(),
		KindChat:    c.Chats.stats(),
	}
}

// Close releases the store.
func (c *Cache) Close() error {
	return c.store.Close()
}
