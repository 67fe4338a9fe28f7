package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pelicanhq/pelican/internal/models"
	"github.com/pelicanhq/pelican/internal/platform"
)

// PlatformAPI is the slice of the social platform client the sweeps use.
// Satisfied by *platform.Client; tests substitute a fake.
type PlatformAPI interface {
	Publish(ctx context.Context, accessToken, text string) (*platform.PublishedPost, error)
	RefreshToken(ctx context.Context, refreshToken string) (*platform.TokenResponse, error)
	UserTimeline(ctx context.Context, accessToken, platformUserID string, maxResults int) ([]platform.TimelinePost, error)
}

// ErrTokenExpiredNoRefresh means the stored access token has expired and there
// is no refresh token to exchange. The account owner has to re-link.
var ErrTokenExpiredNoRefresh = errors.New("access token expired and no refresh token stored")

// TokenService resolves a usable access token for a social account, refreshing
// and persisting it when expired.
type TokenService struct {
	db     *gorm.DB
	api    PlatformAPI
	logger *zap.Logger
}

func NewTokenService(db *gorm.DB, api PlatformAPI, logger *zap.Logger) *TokenService {
	return &TokenService{
		db:     db,
		api:    api,
		logger: logger,
	}
}

// AccessToken returns a non-expired access token for the account. The no-op
// path performs no I/O. On a successful refresh the new token and expiry are
// persisted before returning, and the passed account is updated in place so
// callers in the same sweep reuse it. On refresh failure the stored
// credentials are left untouched.
func (s *TokenService) AccessToken(ctx context.Context, account *models.SocialAccount) (string, error) {
	if account.TokenExpiresAt == nil || account.TokenExpiresAt.After(time.Now()) {
		return account.AccessToken, nil
	}

	if account.RefreshToken == "" {
		return "", ErrTokenExpiredNoRefresh
	}

	token, err := s.api.RefreshToken(ctx, account.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	expiresAt := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	updates := map[string]interface{}{
		"access_token":     token.AccessToken,
		"token_expires_at": expiresAt,
	}

	if err := s.db.WithContext(ctx).Model(&models.SocialAccount{}).
		Where("id = ?", account.ID).
		Updates(updates).Error; err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	s.logger.Info("Refreshed access token",
		zap.String("account_id", account.ID),
		zap.Time("expires_at", expiresAt))

	account.AccessToken = token.AccessToken
	account.TokenExpiresAt = &expiresAt

	return token.AccessToken, nil
}
