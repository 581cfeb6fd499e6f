package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper removes expired cache entries.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler runs periodic feed refreshes and cache sweeps.
type Scheduler struct {
	refresher *Refresher
	sweeper   Sweeper
	logger    *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	entries []cron.EntryID
}

func NewScheduler(refresher *Refresher, sweeper Sweeper, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		refresher: refresher,
		sweeper:   sweeper,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start registers the jobs and starts the scheduler. An empty spec disables
// the corresponding job.
func (s *Scheduler) Start(refreshSpec, sweepSpec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return fmt.Errorf("scheduler already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if refreshSpec != "" && s.refresher != nil {
		id, err := s.cron.AddFunc(refreshSpec, func() { s.runRefresh(ctx) })
		if err != nil {
			cancel()
			return fmt.Errorf("failed to add refresh job: %w", err)
		}
		s.entries = append(s.entries, id)
	}
	if sweepSpec != "" && s.sweeper != nil {
		id, err := s.cron.AddFunc(sweepSpec, func() { s.runSweep(ctx) })
		if err != nil {
			cancel()
			s.removeEntries()
			return fmt.Errorf("failed to add sweep job: %w", err)
		}
		s.entries = append(s.entries, id)
	}

	s.ctx, s.cancel = ctx, cancel
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("refresh", refreshSpec),
		zap.String("sweep", sweepSpec))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.removeEntries()
	s.ctx, s.cancel = nil, nil
}

func (s *Scheduler) removeEntries() {
	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = nil
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	if s.refresher.Refreshing() {
		s.logger.Info("refresh skipped: previous refresh still running")
		return
	}
	reports := s.refresher.RefreshAll(ctx)
	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
		}
	}
	s.logger.Info("scheduled refresh done", zap.Int("groups", len(reports)), zap.Int("failed", failed))
}

func (s *Scheduler) runSweep(ctx context.Context) {
	n, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Warn("cache sweep failed", zap.Int("removed", n), zap.Error(err))
		return
	}
	s.logger.Info("cache sweep done", zap.Int("removed", n))
}
