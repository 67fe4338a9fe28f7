package models

import "time"

const (
	SweepJobDispatch  = "dispatch"
	SweepJobAnalytics = "analytics"
)

// SweepRecord captures the outcome of one sweep run for the admin dashboard.
type SweepRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Job        string    `gorm:"not null;size:50;index" json:"job"`
	Due        int       `gorm:"default:0" json:"due"`
	Posted     int       `gorm:"default:0" json:"posted"`
	Failed     int       `gorm:"default:0" json:"failed"`
	Skipped    int       `gorm:"default:0" json:"skipped"`
	Synced     int       `gorm:"default:0" json:"synced"`
	DurationMS int64     `gorm:"default:0" json:"duration_ms"`
	StartedAt  time.Time `gorm:"not null;index" json:"started_at"`
}
