package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SocialAccount is a linked social platform identity. The access token and
// expiry are the only fields the dispatch jobs ever update.
type SocialAccount struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         string     `gorm:"not null;index;size:36" json:"user_id"`
	PlatformUserID string     `gorm:"not null;size:255" json:"platform_user_id"`
	Username       string     `gorm:"not null;size:255" json:"username"`
	AccessToken    string     `gorm:"not null;type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at"`
	IsActive       bool       `gorm:"default:true;index" json:"is_active"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *SocialAccount) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
