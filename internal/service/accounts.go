package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pelicanhq/pelican/internal/models"
)

// AccountService reads linked social accounts and flips which one is active.
// Account linking itself happens in the external identity layer.
type AccountService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAccountService(db *gorm.DB, logger *zap.Logger) *AccountService {
	return &AccountService{
		db:     db,
		logger: logger,
	}
}

func (s *AccountService) ListForUser(ctx context.Context, userID string) ([]models.SocialAccount, error) {
	var accounts []models.SocialAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	return accounts, nil
}

// SwitchActive makes the given account the user's single active one.
func (s *AccountService) SwitchActive(ctx context.Context, userID, accountID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.SocialAccount{}).
			Where("user_id = ?", userID).
			Update("is_active", false).Error
		if err != nil {
			return fmt.Errorf("failed to deactivate accounts: %w", err)
		}

		result := tx.Model(&models.SocialAccount{}).
			Where("id = ? AND user_id = ?", accountID, userID).
			Update("is_active", true)
		if result.Error != nil {
			return fmt.Errorf("failed to activate account: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		s.logger.Info("Switched active account",
			zap.String("user_id", userID),
			zap.String("account_id", accountID))

		return nil
	})
}
