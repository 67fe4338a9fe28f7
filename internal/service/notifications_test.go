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

func TestNotificationsCreateAndList(t *testing.T) {
	assert := assert.New(t)
	db := newTestDB(t)
	notifications := NewNotificationService(db, zap.NewNop())
	ctx := context.Background()

	err := notifications.Create(ctx, "user-1", models.NotificationTypeScheduledReminder,
		"Post Published", "Your scheduled post has been published successfully.",
		map[string]interface{}{"external_id": "ext-1"})
	require.NoError(t, err)

	err = notifications.Create(ctx, "user-2", models.NotificationTypeSystem, "Post Failed", "boom", nil)
	require.NoError(t, err)

	got, err := notifications.ListForUser(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal("Post Published", got[0].Title)
	assert.Contains(got[0].Metadata, "ext-1")
	assert.False(got[0].Read)
}

func TestMarkReadScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	notifications := NewNotificationService(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, notifications.Create(ctx, "user-1", models.NotificationTypeSystem, "t", "m", nil))

	got, err := notifications.ListForUser(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Another user cannot mark it
	err = notifications.MarkRead(ctx, "user-2", got[0].ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// The owner can
	require.NoError(t, notifications.MarkRead(ctx, "user-1", got[0].ID))

	got, err = notifications.ListForUser(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.True(t, got[0].Read)
}
