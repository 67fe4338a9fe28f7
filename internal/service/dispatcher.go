package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pelicanhq/pelican/internal/config"
	"github.com/pelicanhq/pelican/internal/models"
)

// DispatchService runs the scheduled post sweep: select due posts, claim them,
// publish through the platform API, and record the outcome. Items are
// processed strictly sequentially; one item's failure never blocks the rest.
type DispatchService struct {
	db            *gorm.DB
	api           PlatformAPI
	tokens        *TokenService
	notifications *NotificationService
	stats         *StatsService
	logger        *zap.Logger

	lookbackWindow time.Duration
	itemTimeout    time.Duration
	stuckTimeout   time.Duration
}

// SweepSummary aggregates the per-item outcomes of one dispatch sweep.
type SweepSummary struct {
	Due      int           `json:"due"`
	Posted   int           `json:"posted"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

func NewDispatchService(cfg *config.DispatchConfig, db *gorm.DB, api PlatformAPI,
	tokens *TokenService, notifications *NotificationService, stats *StatsService, logger *zap.Logger) *DispatchService {

	return &DispatchService{
		db:             db,
		api:            api,
		tokens:         tokens,
		notifications:  notifications,
		stats:          stats,
		logger:         logger,
		lookbackWindow: parseDurationOr(cfg.LookbackWindow, 5*time.Minute),
		itemTimeout:    parseDurationOr(cfg.ItemTimeout, 30*time.Second),
		stuckTimeout:   parseDurationOr(cfg.StuckTimeout, 10*time.Minute),
	}
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// RunSweep publishes every post that came due within the lookback window.
// A store failure during selection aborts the sweep; everything after that is
// recorded per item. Zero due posts is a successful no-op.
func (s *DispatchService) RunSweep(ctx context.Context) (*SweepSummary, error) {
	start := time.Now()

	var due []models.ScheduledPost
	err := s.db.WithContext(ctx).
		Preload("Account").
		Where("status = ? AND scheduled_for <= ? AND scheduled_for >= ?",
			models.PostStatusScheduled, start, start.Add(-s.lookbackWindow)).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select due posts: %w", err)
	}

	summary := &SweepSummary{Due: len(due)}
	if len(due) == 0 {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	s.logger.Info("Dispatching due posts", zap.Int("count", len(due)))

	for i := range due {
		post := &due[i]

		claimed, err := s.claim(ctx, post.ID)
		if err != nil {
			s.logger.Error("Failed to claim post",
				zap.String("post_id", post.ID),
				zap.Error(err))
			summary.Skipped++
			continue
		}
		if !claimed {
			// Another sweep won the claim; the post is no longer ours.
			summary.Skipped++
			continue
		}

		if err := s.publish(ctx, post); err != nil {
			s.recordFailure(ctx, post, err)
			summary.Failed++
			continue
		}
		summary.Posted++
	}

	summary.Duration = time.Since(start)
	s.recordSweep(summary, start)

	return summary, nil
}

// claim transitions scheduled -> posting with a conditional update, so exactly
// one of two overlapping sweeps can win a given post.
func (s *DispatchService) claim(ctx context.Context, postID string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.ScheduledPost{}).
		Where("id = ? AND status = ?", postID, models.PostStatusScheduled).
		Update("status", models.PostStatusPosting)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (s *DispatchService) publish(ctx context.Context, post *models.ScheduledPost) error {
	if post.Account.ID == "" {
		return fmt.Errorf("social account %s not found", post.AccountID)
	}

	// The timeout bounds the external calls only, so a hung platform call
	// cannot stall the whole sweep. Terminal writes run on the parent context.
	callCtx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	accessToken, err := s.tokens.AccessToken(callCtx, &post.Account)
	if err != nil {
		return err
	}

	published, err := s.api.Publish(callCtx, accessToken, post.Content)
	if err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      models.PostStatusPosted,
		"posted_at":   now,
		"external_id": published.ID,
	}
	if err := s.db.WithContext(ctx).Model(&models.ScheduledPost{}).
		Where("id = ?", post.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record published post: %w", err)
	}

	s.logger.Info("Published scheduled post",
		zap.String("post_id", post.ID),
		zap.String("external_id", published.ID))

	err = s.notifications.Create(ctx, post.UserID, models.NotificationTypeScheduledReminder,
		"Post Published", "Your scheduled post has been published successfully.",
		map[string]interface{}{"post_id": post.ID, "external_id": published.ID})
	if err != nil {
		s.logger.Error("Failed to create success notification",
			zap.String("post_id", post.ID),
			zap.Error(err))
	}

	return nil
}

func (s *DispatchService) recordFailure(ctx context.Context, post *models.ScheduledPost, cause error) {
	s.logger.Error("Failed to publish scheduled post",
		zap.String("post_id", post.ID),
		zap.Error(cause))

	updates := map[string]interface{}{
		"status":        models.PostStatusFailed,
		"error_message": cause.Error(),
	}
	if err := s.db.WithContext(ctx).Model(&models.ScheduledPost{}).
		Where("id = ?", post.ID).
		Updates(updates).Error; err != nil {
		s.logger.Error("Failed to record post failure",
			zap.String("post_id", post.ID),
			zap.Error(err))
	}

	err := s.notifications.Create(ctx, post.UserID, models.NotificationTypeSystem,
		"Post Failed", fmt.Sprintf("Failed to publish your scheduled post: %s", cause.Error()),
		map[string]interface{}{"post_id": post.ID})
	if err != nil {
		s.logger.Error("Failed to create failure notification",
			zap.String("post_id", post.ID),
			zap.Error(err))
	}
}

// ReclaimStuck fails posts left in posting by a crash between claim and
// terminal write. Runs outside the sweep itself so the sweep contract stays a
// single linear pass.
func (s *DispatchService) ReclaimStuck(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.stuckTimeout)

	result := s.db.WithContext(ctx).Model(&models.ScheduledPost{}).
		Where("status = ? AND updated_at < ?", models.PostStatusPosting, cutoff).
		Updates(map[string]interface{}{
			"status":        models.PostStatusFailed,
			"error_message": "publishing was interrupted and did not complete",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reclaim stuck posts: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Warn("Reclaimed stuck posts", zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}

func (s *DispatchService) recordSweep(summary *SweepSummary, start time.Time) {
	if s.stats == nil {
		return
	}

	record := &models.SweepRecord{
		Job:        models.SweepJobDispatch,
		Due:        summary.Due,
		Posted:     summary.Posted,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		DurationMS: summary.Duration.Milliseconds(),
		StartedAt:  start,
	}
	if err := s.stats.RecordSweep(record); err != nil {
		s.logger.Error("Failed to record sweep stats", zap.Error(err))
	}
}
