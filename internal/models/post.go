package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scheduled post lifecycle. Transitions are one-directional:
// scheduled -> posting -> posted | failed.
const (
	PostStatusScheduled = "scheduled"
	PostStatusPosting   = "posting"
	PostStatusPosted    = "posted"
	PostStatusFailed    = "failed"
)

type ScheduledPost struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       string     `gorm:"not null;index;size:36" json:"user_id"`
	AccountID    string     `gorm:"not null;index;size:36" json:"account_id"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	ScheduledFor time.Time  `gorm:"not null;index" json:"scheduled_for"`
	Status       string     `gorm:"size:50;default:'scheduled';index" json:"status"`
	PostedAt     *time.Time `json:"posted_at"`
	ExternalID   string     `gorm:"size:255" json:"external_id"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Account SocialAccount `gorm:"foreignKey:AccountID" json:"account"`
}

func (p *ScheduledPost) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
