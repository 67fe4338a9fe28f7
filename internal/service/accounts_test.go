package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pelicanhq/pelican/internal/models"
)

func TestSwitchActiveLeavesSingleActiveAccount(t *testing.T) {
	assert := assert.New(t)
	db := newTestDB(t)
	accounts := NewAccountService(db, zap.NewNop())

	first := seedAccount(t, db, "user-1", true, nil, "")
	second := seedAccount(t, db, "user-1", false, nil, "")
	foreign := seedAccount(t, db, "user-2", true, nil, "")

	require.NoError(t, accounts.SwitchActive(context.Background(), "user-1", second.ID))

	var got models.SocialAccount
	require.NoError(t, db.First(&got, "id = ?", first.ID).Error)
	assert.False(got.IsActive)
	got = models.SocialAccount{}
	require.NoError(t, db.First(&got, "id = ?", second.ID).Error)
	assert.True(got.IsActive)

	// Another user's account is untouched
	got = models.SocialAccount{}
	require.NoError(t, db.First(&got, "id = ?", foreign.ID).Error)
	assert.True(got.IsActive)
}

func TestSwitchActiveUnknownAccount(t *testing.T) {
	db := newTestDB(t)
	accounts := NewAccountService(db, zap.NewNop())

	seedAccount(t, db, "user-1", true, nil, "")

	err := accounts.SwitchActive(context.Background(), "user-1", "no-such-account")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSwitchActiveCannotTakeForeignAccount(t *testing.T) {
	db := newTestDB(t)
	accounts := NewAccountService(db, zap.NewNop())

	foreign := seedAccount(t, db, "user-2", false, nil, "")

	err := accounts.SwitchActive(context.Background(), "user-1", foreign.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListForUserReturnsOwnAccounts(t *testing.T) {
	db := newTestDB(t)
	accounts := NewAccountService(db, zap.NewNop())

	seedAccount(t, db, "user-1", true, nil, "")
	seedAccount(t, db, "user-1", false, nil, "")
	seedAccount(t, db, "user-2", true, nil, "")

	got, err := accounts.ListForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
