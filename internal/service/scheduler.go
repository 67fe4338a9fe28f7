package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pelicanhq/pelican/internal/config"
)

// Scheduler drives the dispatch and analytics sweeps from in-process tickers.
// Deployments that trigger sweeps through the cron endpoints leave it
// disabled.
type Scheduler struct {
	config     *config.SchedulerConfig
	logger     *zap.Logger
	dispatcher *DispatchService
	analytics  *AnalyticsService
	stats      *StatsService

	dispatchTicker  *time.Ticker
	analyticsTicker *time.Ticker
	stopCh          chan struct{}
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger,
	dispatcher *DispatchService, analytics *AnalyticsService, stats *StatsService) *Scheduler {

	return &Scheduler{
		config:     cfg,
		logger:     logger,
		dispatcher: dispatcher,
		analytics:  analytics,
		stats:      stats,
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	dispatchInterval, err := time.ParseDuration(s.config.DispatchInterval)
	if err != nil {
		s.logger.Error("Invalid dispatch interval", zap.String("interval", s.config.DispatchInterval), zap.Error(err))
		return err
	}

	analyticsInterval, err := time.ParseDuration(s.config.AnalyticsInterval)
	if err != nil {
		s.logger.Error("Invalid analytics interval", zap.String("interval", s.config.AnalyticsInterval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler",
		zap.String("dispatch_interval", s.config.DispatchInterval),
		zap.String("analytics_interval", s.config.AnalyticsInterval))

	s.dispatchTicker = time.NewTicker(dispatchInterval)
	s.analyticsTicker = time.NewTicker(analyticsInterval)

	go func() {
		for {
			select {
			case <-s.dispatchTicker.C:
				s.runDispatch(ctx)
			case <-s.analyticsTicker.C:
				s.runAnalytics(ctx)
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.dispatchTicker != nil {
		s.dispatchTicker.Stop()
	}
	if s.analyticsTicker != nil {
		s.analyticsTicker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) runDispatch(ctx context.Context) {
	if _, err := s.dispatcher.ReclaimStuck(ctx); err != nil {
		s.logger.Error("Reclaim pass failed", zap.Error(err))
	}

	summary, err := s.dispatcher.RunSweep(ctx)
	if err != nil {
		s.logger.Error("Dispatch sweep failed", zap.Error(err))
		return
	}

	if summary.Due > 0 {
		s.logger.Info("Dispatch sweep completed",
			zap.Int("due", summary.Due),
			zap.Int("posted", summary.Posted),
			zap.Int("failed", summary.Failed),
			zap.Duration("duration", summary.Duration))
	}
}

func (s *Scheduler) runAnalytics(ctx context.Context) {
	summary, err := s.analytics.SyncAll(ctx)
	if err != nil {
		s.logger.Error("Analytics sweep failed", zap.Error(err))
		return
	}

	s.logger.Info("Analytics sweep completed",
		zap.Int("accounts", summary.Accounts),
		zap.Int("synced", summary.Synced),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))

	if err := s.stats.CleanupOldData(s.config.StatsRetentionDays); err != nil {
		s.logger.Error("Failed to cleanup old data", zap.Error(err))
	}
}
