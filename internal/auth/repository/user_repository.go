package repository

import (
	"context"
	"errors"

	authdomain "mail-event-processor/internal/auth/domain"

	"gorm.io/gorm"
)

// UserRepository is the read side of the user store used by the processor.
type UserRepository interface {
	// FindByEmail matches the address case-insensitively and returns nil, nil
	// when no user has it.
	FindByEmail(ctx context.Context, email string) (*authdomain.User, error)
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
