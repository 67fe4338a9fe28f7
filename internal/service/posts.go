package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pelicanhq/pelican/internal/models"
)

// Free plan allowance: scheduled posts per calendar month. Paid plans are
// unlimited.
const freePlanMonthlyLimit = 5

// ErrScheduleLimitReached means the user's plan does not allow scheduling any
// more posts this month.
var ErrScheduleLimitReached = errors.New("monthly scheduled post limit reached")

// PostService handles user-facing scheduling requests.
type PostService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPostService(db *gorm.DB, logger *zap.Logger) *PostService {
	return &PostService{
		db:     db,
		logger: logger,
	}
}

// Schedule creates a new post in the scheduled state, after checking account
// ownership and the plan's monthly allowance.
func (s *PostService) Schedule(ctx context.Context, userID, accountID, content string, scheduledFor time.Time) (*models.ScheduledPost, error) {
	var account models.SocialAccount
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", accountID, userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	plan, err := s.userPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	if plan == models.PlanFree {
		used, err := s.monthlyUsage(ctx, userID)
		if err != nil {
			return nil, err
		}
		if used >= freePlanMonthlyLimit {
			return nil, ErrScheduleLimitReached
		}
	}

	post := &models.ScheduledPost{
		UserID:       userID,
		AccountID:    accountID,
		Content:      content,
		ScheduledFor: scheduledFor,
		Status:       models.PostStatusScheduled,
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create scheduled post: %w", err)
	}

	s.logger.Info("Scheduled post",
		zap.String("post_id", post.ID),
		zap.String("user_id", userID),
		zap.Time("scheduled_for", scheduledFor))

	return post, nil
}

// ListForUser returns the user's posts ordered by scheduled time.
func (s *PostService) ListForUser(ctx context.Context, userID string) ([]models.ScheduledPost, error) {
	var posts []models.ScheduledPost
	err := s.db.WithContext(ctx).
		Preload("Account").
		Where("user_id = ?", userID).
		Order("scheduled_for asc").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled posts: %w", err)
	}

	return posts, nil
}

// userPlan reads the plan from the billing-owned subscription row; users
// without one are on the free plan.
func (s *PostService) userPlan(ctx context.Context, userID string) (string, error) {
	var subscription models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PlanFree, nil
		}
		return "", fmt.Errorf("failed to look up subscription: %w", err)
	}

	return subscription.Plan, nil
}

// monthlyUsage counts posts created since the start of the current month that
// consumed allowance (scheduled or already posted; failed posts do not count).
func (s *PostService) monthlyUsage(ctx context.Context, userID string) (int64, error) {
	now := time.Now()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var count int64
	err := s.db.WithContext(ctx).Model(&models.ScheduledPost{}).
		Where("user_id = ? AND created_at >= ? AND status IN ?",
			userID, startOfMonth, []string{models.PostStatusScheduled, models.PostStatusPosted}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count monthly usage: %w", err)
	}

	return count, nil
}
