package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pelicanhq/pelican/internal/models"
)

// StatsService persists per-sweep outcome records for the admin dashboard.
type StatsService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStatsService(db *gorm.DB, logger *zap.Logger) *StatsService {
	return &StatsService{
		db:     db,
		logger: logger,
	}
}

func (s *StatsService) RecordSweep(record *models.SweepRecord) error {
	return s.db.Create(record).Error
}

func (s *StatsService) RecentSweeps(limit int) ([]models.SweepRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []models.SweepRecord
	err := s.db.
		Order("started_at desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sweep records: %w", err)
	}

	return records, nil
}

// CleanupOldData drops sweep records older than the retention window.
func (s *StatsService) CleanupOldData(daysToKeep int) error {
	cutoff := time.Now().AddDate(0, 0, -daysToKeep)

	result := s.db.Where("started_at < ?", cutoff).Delete(&models.SweepRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to cleanup sweep records: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Debug("Cleaned up old sweep records", zap.Int64("count", result.RowsAffected))
	}

	return nil
}
