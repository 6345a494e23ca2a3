package repository

import (
	"context"

	authdomain "mail-event-processor/internal/auth/domain"

	"gorm.io/gorm"
)

// FCMTokenRepository defines the interface for FCM token operations
type FCMTokenRepository interface {
	GetTokensByEmail(ctx context.Context, userEmail string) ([]authdomain.FCMToken, error)
	DeleteToken(ctx context.Context, token string) error
}

// fcmTokenRepository implements FCMTokenRepository interface
type fcmTokenRepository struct {
	db *gorm.DB
}

// NewFCMTokenRepository creates a new instance of fcmTokenRepository
func NewFCMTokenRepository(db *gorm.DB) FCMTokenRepository {
	return &fcmTokenRepository{
		db: db,
	}
}

// GetTokensByEmail returns all FCM tokens registered by a user
func (r *fcmTokenRepository) GetTokensByEmail(ctx context.Context, userEmail string) ([]authdomain.FCMToken, error) {
	var tokens []authdomain.FCMToken
	err := r.db.WithContext(ctx).Where("user_email = ?", userEmail).Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteToken removes a specific FCM token
func (r *fcmTokenRepository) DeleteToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&authdomain.FCMToken{}).Error
}
