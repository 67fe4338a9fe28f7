package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NotificationTypeScheduledReminder = "scheduled_reminder"
	NotificationTypePerformanceUpdate = "performance_update"
	NotificationTypeEngagementInsight = "engagement_insight"
	NotificationTypeSystem            = "system"
)

type Notification struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"not null;index;size:36" json:"user_id"`
	Type      string    `gorm:"not null;size:50" json:"type"`
	Title     string    `gorm:"not null;size:255" json:"title"`
	Message   string    `gorm:"not null;type:text" json:"message"`
	Metadata  string    `gorm:"type:jsonb" json:"metadata"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
