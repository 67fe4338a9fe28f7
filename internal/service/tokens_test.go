package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pelicanhq/pelican/internal/models"
	"github.com/pelicanhq/pelican/internal/platform"
)

func TestAccessTokenNotExpiredIsNoop(t *testing.T) {
	db := newTestDB(t)

	refreshCalls := 0
	api := &fakePlatform{
		refresh: func(context.Context, string) (*platform.TokenResponse, error) {
			refreshCalls++
			return nil, errors.New("should not be called")
		},
	}
	tokens := NewTokenService(db, api, zap.NewNop())

	future := time.Now().Add(time.Hour)
	account := seedAccount(t, db, "user-1", true, &future, "refresh-token")

	token, err := tokens.AccessToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "access-token", token)
	assert.Zero(t, refreshCalls)
}

func TestAccessTokenNilExpiryIsNoop(t *testing.T) {
	db := newTestDB(t)
	tokens := NewTokenService(db, &fakePlatform{}, zap.NewNop())

	account := seedAccount(t, db, "user-1", true, nil, "")

	token, err := tokens.AccessToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "access-token", token)
}

func TestAccessTokenExpiredWithoutRefreshToken(t *testing.T) {
	db := newTestDB(t)
	tokens := NewTokenService(db, &fakePlatform{}, zap.NewNop())

	expired := time.Now().Add(-time.Hour)
	account := seedAccount(t, db, "user-1", true, &expired, "")

	_, err := tokens.AccessToken(context.Background(), account)
	assert.ErrorIs(t, err, ErrTokenExpiredNoRefresh)
}

func TestAccessTokenRefreshPersists(t *testing.T) {
	assert := assert.New(t)
	db := newTestDB(t)

	api := &fakePlatform{
		refresh: func(_ context.Context, refreshToken string) (*platform.TokenResponse, error) {
			assert.Equal("refresh-token", refreshToken)
			return &platform.TokenResponse{AccessToken: "new-access-token", ExpiresIn: 7200}, nil
		},
	}
	tokens := NewTokenService(db, api, zap.NewNop())

	expired := time.Now().Add(-time.Hour)
	account := seedAccount(t, db, "user-1", true, &expired, "refresh-token")

	token, err := tokens.AccessToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal("new-access-token", token)

	// The returned token matches what was persisted
	var got models.SocialAccount
	require.NoError(t, db.First(&got, "id = ?", account.ID).Error)
	assert.Equal("new-access-token", got.AccessToken)
	require.NotNil(t, got.TokenExpiresAt)
	assert.True(got.TokenExpiresAt.After(time.Now()))

	// The in-memory account was updated in place for reuse within the sweep
	assert.Equal("new-access-token", account.AccessToken)
}

func TestAccessTokenRefreshFailureKeepsStoredCredentials(t *testing.T) {
	db := newTestDB(t)

	api := &fakePlatform{
		refresh: func(context.Context, string) (*platform.TokenResponse, error) {
			return nil, errors.New("invalid_grant")
		},
	}
	tokens := NewTokenService(db, api, zap.NewNop())

	expired := time.Now().Add(-time.Hour)
	account := seedAccount(t, db, "user-1", true, &expired, "refresh-token")

	_, err := tokens.AccessToken(context.Background(), account)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")

	var got models.SocialAccount
	require.NoError(t, db.First(&got, "id = ?", account.ID).Error)
	assert.Equal(t, "access-token", got.AccessToken)
	assert.Equal(t, "refresh-token", got.RefreshToken)
}
