package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pelicanhq/pelican/internal/config"
	"github.com/pelicanhq/pelican/internal/models"
	"github.com/pelicanhq/pelican/internal/platform"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// One shared in-memory database per test, named after the test so
	// parallel tests do not see each other's rows.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.SocialAccount{},
		&models.ScheduledPost{},
		&models.Notification{},
		&models.PostAnalytics{},
		&models.Subscription{},
		&models.SweepRecord{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func testDispatchConfig() *config.DispatchConfig {
	return &config.DispatchConfig{
		LookbackWindow: "5m",
		ItemTimeout:    "5s",
		StuckTimeout:   "10m",
	}
}

// fakePlatform implements PlatformAPI with pluggable behavior per call.
// Calls without a configured behavior fail the sweep item, which makes
// unexpected I/O visible in test results.
type fakePlatform struct {
	publish  func(ctx context.Context, accessToken, text string) (*platform.PublishedPost, error)
	refresh  func(ctx context.Context, refreshToken string) (*platform.TokenResponse, error)
	timeline func(ctx context.Context, accessToken, platformUserID string, maxResults int) ([]platform.TimelinePost, error)
}

func (f *fakePlatform) Publish(ctx context.Context, accessToken, text string) (*platform.PublishedPost, error) {
	if f.publish == nil {
		return nil, errors.New("unexpected Publish call")
	}
	return f.publish(ctx, accessToken, text)
}

func (f *fakePlatform) RefreshToken(ctx context.Context, refreshToken string) (*platform.TokenResponse, error) {
	if f.refresh == nil {
		return nil, errors.New("unexpected RefreshToken call")
	}
	return f.refresh(ctx, refreshToken)
}

func (f *fakePlatform) UserTimeline(ctx context.Context, accessToken, platformUserID string, maxResults int) ([]platform.TimelinePost, error) {
	if f.timeline == nil {
		return nil, errors.New("unexpected UserTimeline call")
	}
	return f.timeline(ctx, accessToken, platformUserID, maxResults)
}

func seedAccount(t *testing.T, db *gorm.DB, userID string, active bool, expiresAt *time.Time, refreshToken string) *models.SocialAccount {
	t.Helper()

	account := &models.SocialAccount{
		UserID:         userID,
		PlatformUserID: "platform-" + userID,
		Username:       "user-" + userID,
		AccessToken:    "access-token",
		RefreshToken:   refreshToken,
		TokenExpiresAt: expiresAt,
		IsActive:       active,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	if !active {
		// The column's default:true overrides a zero-value false on create,
		// so write the flag explicitly.
		if err := db.Model(account).UpdateColumn("is_active", false).Error; err != nil {
			t.Fatalf("failed to seed account: %v", err)
		}
	}

	return account
}

func seedPost(t *testing.T, db *gorm.DB, account *models.SocialAccount, content string, scheduledFor time.Time, status string) *models.ScheduledPost {
	t.Helper()

	post := &models.ScheduledPost{
		UserID:       account.UserID,
		AccountID:    account.ID,
		Content:      content,
		ScheduledFor: scheduledFor,
		Status:       status,
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}

	return post
}

func newTestDispatcher(t *testing.T, db *gorm.DB, api PlatformAPI) *DispatchService {
	t.Helper()

	log := zap.NewNop()
	tokens := NewTokenService(db, api, log)
	notifications := NewNotificationService(db, log)
	stats := NewStatsService(db, log)

	return NewDispatchService(testDispatchConfig(), db, api, tokens, notifications, stats, log)
}

func newTestAnalytics(t *testing.T, db *gorm.DB, api PlatformAPI) *AnalyticsService {
	t.Helper()

	log := zap.NewNop()
	tokens := NewTokenService(db, api, log)
	stats := NewStatsService(db, log)

	return NewAnalyticsService(testDispatchConfig(), db, api, tokens, stats, log)
}
