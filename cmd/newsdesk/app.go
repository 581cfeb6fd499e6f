package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"newsdesk/cache"
	"newsdesk/common"
	"newsdesk/config"
	"newsdesk/events"
	"newsdesk/ingestion"
	"newsdesk/llm"
	"newsdesk/metrics"
	"newsdesk/orchestrator"
	"newsdesk/rssfeeds"
	"newsdesk/search"
)

// app is the wired set of services shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	cache     *cache.Cache
	refresher *ingestion.Refresher
	orch      *orchestrator.Orchestrator
	notifier  *events.Notifier
	archive   *common.SummaryArchiver
}

type appOptions struct {
	// notify publishes completion events when Kafka is configured.
	notify bool
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	m := metrics.New(nil)

	store := cache.OpenStore(cache.StoreConfig{
		Backend:    cfg.CacheBackend,
		SQLitePath: cfg.CachePath(),
		Redis: cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	}, logger)
	c := cache.Open(ctx, store,
		cache.WithTTL(cfg.CacheTTL),
		cache.WithLogger(logger.Named("cache")),
		cache.WithObserver(m))

	groups, err := config.LoadSubscriptions(cfg.SubscriptionsPath)
	if err != nil {
		c.Close()
		return nil, err
	}
	refresher := ingestion.NewRefresher(ingestion.RefresherConfig{
		Groups:       groups,
		FetchOptions: rssfeeds.FetchOptions{Timeout: cfg.ExternalTimeout},
		Logger:       logger.Named("ingestion"),
		Metrics:      m,
	})

	a := &app{cfg: cfg, logger: logger, metrics: m, cache: c, refresher: refresher}

	deps := orchestrator.Deps{
		Cache:    c,
		Articles: refresher.Board(),
		Extractor: rssfeeds.NewExtractor(rssfeeds.ExtractorConfig{
			Timeout: cfg.ExternalTimeout,
			Logger:  logger.Named("extractor"),
		}),
		Searcher: search.NewDuckDuckGo(search.Config{
			Endpoint: cfg.SearchEndpoint,
			Logger:   logger.Named("search"),
		}),
		Metrics: m,
		Logger:  logger.Named("orchestrator"),
	}

	gen, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.ExternalTimeout,
	})
	switch {
	case errors.Is(err, llm.ErrMissingCredentials):
		logger.Warn("no LLM credentials configured, only cached summaries are available")
	case err != nil:
		a.Close()
		return nil, err
	default:
		deps.Generator = gen
	}

	if cfg.S3.Enabled() {
		bucket, err := common.NewS3Bucket(ctx, common.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Profile:      cfg.S3.Profile,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			logger.Warn("summary archive disabled", zap.Error(err))
		} else {
			a.archive = common.NewSummaryArchiver(bucket, cfg.S3.Prefix)
			deps.Archiver = a.archive
		}
	}

	if opts.notify && cfg.Kafka.Enabled() {
		n, err := events.NewNotifier(events.NotifierConfig{
			Brokers:         cfg.Kafka.Brokers,
			Topic:           cfg.Kafka.NotifyTopic,
			GlobalInterval:  cfg.Notify.GlobalInterval,
			PerItemInterval: cfg.Notify.PerItemInterval,
			Logger:          logger.Named("notifier"),
			Metrics:         m,
		})
		if err != nil {
			logger.Warn("completion notifications disabled", zap.Error(err))
		} else {
			a.notifier = n
			deps.Notifier = n
		}
	}

	orch, err := orchestrator.New(deps, orchestrator.Config{
		ExternalTimeout: cfg.ExternalTimeout,
		SearchResults:   cfg.SearchMaxResults,
		Model:           llm.ModelConfig{Model: cfg.LLM.Model},
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orch = orch
	return a, nil
}

// Close releases the cache store and producer and flushes the logger.
func (a *app) Close() {
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.logger.Warn("failed to close notifier", zap.Error(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close cache", zap.Error(err))
	}
	_ = a.logger.Sync()
}
