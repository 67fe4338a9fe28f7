package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostAnalytics is a synced engagement snapshot for one published post.
// Rows are upserted on (account_id, external_id); re-syncing overwrites the
// previous counters instead of appending.
type PostAnalytics struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         string     `gorm:"not null;index;size:36" json:"user_id"`
	AccountID      string     `gorm:"not null;size:36;uniqueIndex:idx_account_external" json:"account_id"`
	ExternalID     string     `gorm:"not null;size:255;uniqueIndex:idx_account_external" json:"external_id"`
	Content        string     `gorm:"type:text" json:"content"`
	LikesCount     int        `gorm:"default:0" json:"likes_count"`
	RepostsCount   int        `gorm:"default:0" json:"reposts_count"`
	RepliesCount   int        `gorm:"default:0" json:"replies_count"`
	Impressions    int        `gorm:"default:0" json:"impressions"`
	EngagementRate float64    `gorm:"default:0" json:"engagement_rate"`
	PostedAt       *time.Time `json:"posted_at"`
	LastSyncedAt   time.Time  `json:"last_synced_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (a *PostAnalytics) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
