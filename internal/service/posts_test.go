package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pelicanhq/pelican/internal/models"
)

func TestScheduleFreePlanLimit(t *testing.T) {
	assert := assert.New(t)
	db := newTestDB(t)
	posts := NewPostService(db, zap.NewNop())
	ctx := context.Background()

	account := seedAccount(t, db, "user-1", true, nil, "")
	later := time.Now().Add(time.Hour)

	for i := 0; i < freePlanMonthlyLimit; i++ {
		_, err := posts.Schedule(ctx, "user-1", account.ID, "post", later)
		require.NoError(t, err)
	}

	_, err := posts.Schedule(ctx, "user-1", account.ID, "one too many", later)
	assert.ErrorIs(err, ErrScheduleLimitReached)
}

func TestScheduleFailedPostsDoNotCount(t *testing.T) {
	db := newTestDB(t)
	posts := NewPostService(db, zap.NewNop())
	ctx := context.Background()

	account := seedAccount(t, db, "user-1", true, nil, "")
	for i := 0; i < freePlanMonthlyLimit; i++ {
		seedPost(t, db, account, "failed earlier", time.Now().Add(-time.Hour), models.PostStatusFailed)
	}

	_, err := posts.Schedule(ctx, "user-1", account.ID, "still allowed", time.Now().Add(time.Hour))
	require.NoError(t, err)
}

func TestScheduleProPlanUnlimited(t *testing.T) {
	db := newTestDB(t)
	posts := NewPostService(db, zap.NewNop())
	ctx := context.Background()

	account := seedAccount(t, db, "user-1", true, nil, "")
	require.NoError(t, db.Create(&models.Subscription{UserID: "user-1", Plan: models.PlanPro, Status: "active"}).Error)

	later := time.Now().Add(time.Hour)
	for i := 0; i < freePlanMonthlyLimit+3; i++ {
		_, err := posts.Schedule(ctx, "user-1", account.ID, "pro post", later)
		require.NoError(t, err)
	}
}

func TestScheduleRejectsForeignAccount(t *testing.T) {
	db := newTestDB(t)
	posts := NewPostService(db, zap.NewNop())

	other := seedAccount(t, db, "user-2", true, nil, "")

	_, err := posts.Schedule(context.Background(), "user-1", other.ID, "not mine", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListForUserOrdersByScheduledTime(t *testing.T) {
	db := newTestDB(t)
	posts := NewPostService(db, zap.NewNop())

	account := seedAccount(t, db, "user-1", true, nil, "")
	now := time.Now()
	seedPost(t, db, account, "second", now.Add(2*time.Hour), models.PostStatusScheduled)
	seedPost(t, db, account, "first", now.Add(1*time.Hour), models.PostStatusScheduled)

	otherAccount := seedAccount(t, db, "user-2", true, nil, "")
	seedPost(t, db, otherAccount, "not mine", now, models.PostStatusScheduled)

	got, err := posts.ListForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)
	assert.Equal(t, account.ID, got[0].Account.ID)
}
