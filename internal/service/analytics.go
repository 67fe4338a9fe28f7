package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pelicanhq/pelican/internal/config"
	"github.com/pelicanhq/pelican/internal/models"
	"github.com/pelicanhq/pelican/internal/platform"
)

const analyticsPageSize = 100

// AnalyticsService syncs engagement counters for published posts and serves
// the derived analytics queries. Structurally the same sweep shape as the
// dispatcher: iterate accounts, isolate failures per account.
type AnalyticsService struct {
	db     *gorm.DB
	api    PlatformAPI
	tokens *TokenService
	stats  *StatsService
	logger *zap.Logger

	accountTimeout time.Duration
}

// SyncSummary aggregates the per-account outcomes of one analytics sweep.
type SyncSummary struct {
	Accounts int           `json:"accounts"`
	Synced   int           `json:"synced"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

func NewAnalyticsService(cfg *config.DispatchConfig, db *gorm.DB, api PlatformAPI,
	tokens *TokenService, stats *StatsService, logger *zap.Logger) *AnalyticsService {

	return &AnalyticsService{
		db:             db,
		api:            api,
		tokens:         tokens,
		stats:          stats,
		logger:         logger,
		accountTimeout: parseDurationOr(cfg.ItemTimeout, 30*time.Second),
	}
}

// SyncAll refreshes engagement snapshots for every active account. A store
// failure during account selection aborts the sweep; a single account's fetch
// failure is logged and does not block the others.
func (s *AnalyticsService) SyncAll(ctx context.Context) (*SyncSummary, error) {
	start := time.Now()

	var accounts []models.SocialAccount
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select active accounts: %w", err)
	}

	summary := &SyncSummary{Accounts: len(accounts)}
	if len(accounts) == 0 {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	for i := range accounts {
		account := &accounts[i]

		synced, err := s.syncAccount(ctx, account)
		if err != nil {
			s.logger.Error("Failed to sync account analytics",
				zap.String("account_id", account.ID),
				zap.String("username", account.Username),
				zap.Error(err))
			summary.Failed++
			continue
		}

		s.logger.Info("Synced account analytics",
			zap.String("username", account.Username),
			zap.Int("posts", synced))
		summary.Synced += synced
	}

	summary.Duration = time.Since(start)
	s.recordSweep(summary, start)

	return summary, nil
}

func (s *AnalyticsService) syncAccount(ctx context.Context, account *models.SocialAccount) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.accountTimeout)
	defer cancel()

	accessToken, err := s.tokens.AccessToken(callCtx, account)
	if err != nil {
		return 0, err
	}

	posts, err := s.api.UserTimeline(callCtx, accessToken, account.PlatformUserID, analyticsPageSize)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for _, post := range posts {
		postedAt := post.CreatedAt
		row := models.PostAnalytics{
			UserID:         account.UserID,
			AccountID:      account.ID,
			ExternalID:     post.ID,
			Content:        post.Text,
			LikesCount:     post.PublicMetrics.LikeCount,
			RepostsCount:   post.PublicMetrics.RepostCount,
			RepliesCount:   post.PublicMetrics.ReplyCount,
			Impressions:    post.PublicMetrics.ImpressionCount,
			EngagementRate: engagementRate(post.PublicMetrics),
			PostedAt:       &postedAt,
			LastSyncedAt:   now,
		}

		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"content", "likes_count", "reposts_count", "replies_count",
				"impressions", "engagement_rate", "posted_at", "last_synced_at",
			}),
		}).Create(&row).Error
		if err != nil {
			return 0, fmt.Errorf("failed to upsert analytics for post %s: %w", post.ID, err)
		}
	}

	return len(posts), nil
}

// engagementRate is (likes + reposts + replies) / impressions, 0 when the post
// has no impressions yet.
func engagementRate(m platform.PublicMetrics) float64 {
	if m.ImpressionCount == 0 {
		return 0
	}
	return float64(m.LikeCount+m.RepostCount+m.ReplyCount) / float64(m.ImpressionCount)
}

// PostsForUser returns the user's synced analytics rows, newest first.
func (s *AnalyticsService) PostsForUser(ctx context.Context, userID string, limit int) ([]models.PostAnalytics, error) {
	if limit <= 0 {
		limit = analyticsPageSize
	}

	var rows []models.PostAnalytics
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("posted_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list post analytics: %w", err)
	}

	return rows, nil
}

// Default posting hours used when an account has no history yet.
var defaultOptimalHours = []int{9, 12, 17}

// OptimalTimes suggests upcoming posting times based on which hours of the day
// historically earned the most engagement. Falls back to common peak hours
// when there is no history.
func (s *AnalyticsService) OptimalTimes(ctx context.Context, userID, accountID string) ([]time.Time, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND posted_at IS NOT NULL", userID).
		Order("posted_at desc").
		Limit(analyticsPageSize)
	if accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}

	var rows []models.PostAnalytics
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load analytics history: %w", err)
	}

	hours := topEngagementHours(rows)
	if len(hours) == 0 {
		hours = defaultOptimalHours
	}

	return upcomingTimesForHours(hours, time.Now()), nil
}

// topEngagementHours buckets history by hour of day, weighs engagement rate by
// impressions, and returns the top three hours by average.
func topEngagementHours(rows []models.PostAnalytics) []int {
	type bucket struct {
		total float64
		count int
	}

	buckets := make(map[int]*bucket)
	for _, row := range rows {
		if row.PostedAt == nil {
			continue
		}
		hour := row.PostedAt.Hour()
		if buckets[hour] == nil {
			buckets[hour] = &bucket{}
		}
		buckets[hour].total += row.EngagementRate * float64(row.Impressions)
		buckets[hour].count++
	}

	type hourAvg struct {
		hour int
		avg  float64
	}

	averages := make([]hourAvg, 0, len(buckets))
	for hour, b := range buckets {
		averages = append(averages, hourAvg{hour: hour, avg: b.total / float64(b.count)})
	}

	sort.Slice(averages, func(i, j int) bool { return averages[i].avg > averages[j].avg })

	top := make([]int, 0, 3)
	for i := 0; i < len(averages) && i < 3; i++ {
		top = append(top, averages[i].hour)
	}

	return top
}

// upcomingTimesForHours expands hours of day into concrete times today (if
// still ahead) and tomorrow, sorted ascending.
func upcomingTimesForHours(hours []int, now time.Time) []time.Time {
	times := make([]time.Time, 0, len(hours)*2)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, hour := range hours {
		todayTime := today.Add(time.Duration(hour) * time.Hour)
		if todayTime.After(now) {
			times = append(times, todayTime)
		}
		times = append(times, todayTime.AddDate(0, 0, 1))
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	return times
}

func (s *AnalyticsService) recordSweep(summary *SyncSummary, start time.Time) {
	if s.stats == nil {
		return
	}

	record := &models.SweepRecord{
		Job:        models.SweepJobAnalytics,
		Due:        summary.Accounts,
		Failed:     summary.Failed,
		Synced:     summary.Synced,
		DurationMS: summary.Duration.Milliseconds(),
		StartedAt:  start,
	}
	if err := s.stats.RecordSweep(record); err != nil {
		s.logger.Error("Failed to record sweep stats", zap.Error(err))
	}
}
