package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FirstOrCreate returns the row with user.ID, inserting user if it is absent.
func (r *GormUserRepository) FirstOrCreate(ctx context.Context, user *domain.UserModel) (*domain.UserModel, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).
		Where(domain.UserModel{ID: user.ID}).
		Attrs(domain.UserModel{Username: user.Username}).
		FirstOrCreate(&model)
	if result.Error != nil {
		return nil, result.Error
	}
	return &model, nil
}

// GetByUsername looks up a user by display name.
func (r *GormUserRepository) GetByUsername(ctx context.Context, username string) (*domain.UserModel, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &model, nil
}
