package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"newsdesk/api"
	"newsdesk/config"
	"newsdesk/events"
	"newsdesk/ingestion"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with scheduled refreshes",
	Long: `Serves the dashboard API, refreshes feeds on a schedule and sweeps expired
cache entries. When Kafka brokers are configured, research requests are also
consumed from the request topic and completions are published.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{notify: true})
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.logger

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	scheduler := ingestion.NewScheduler(a.refresher, a.cache, log.Named("scheduler"))
	if err := scheduler.Start(a.cfg.RefreshSchedule, a.cfg.SweepSchedule); err != nil {
		return err
	}
	defer scheduler.Stop()

	go a.refresher.RefreshAll(ctx)

	if err := config.WatchSubscriptions(ctx, a.cfg.SubscriptionsPath, log, a.refresher.SetSubscriptions); err != nil {
		log.Warn("subscriptions will not be reloaded", zap.Error(err))
	}

	var consumer *events.Consumer
	if a.cfg.Kafka.Enabled() {
		consumer, err = events.NewConsumer(events.ConsumerConfig{
			Brokers: a.cfg.Kafka.Brokers,
			Topic:   a.cfg.Kafka.RequestTopic,
			GroupID: a.cfg.Kafka.GroupID,
			Handler: events.NewResearchHandler(a.refresher.Board(), a.orch, log.Named("requests")),
			Logger:  log.Named("consumer"),
		})
		if err != nil {
			log.Warn("research request intake disabled", zap.Error(err))
		} else {
			go func() {
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("kafka consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	router := api.NewRouter(api.Deps{
		Board:        a.refresher.Board(),
		Refresher:    a.refresher,
		Orchestrator: a.orch,
		CacheStats:   a.cache.Stats,
		Metrics:      a.metrics.Handler(),
		Logger:       log.Named("api"),
	})
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving", zap.String("addr", a.cfg.Addr), zap.String("cache", a.cfg.CacheBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Warn("kafka consumer close error", zap.Error(err))
		}
	}
	return nil
}
