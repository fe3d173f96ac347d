package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
)

// GormMovieRepository implements MovieRepository using GORM.
type GormMovieRepository struct {
	db *gorm.DB
}

// NewGormMovieRepository creates a new GORM-based movie repository.
func NewGormMovieRepository(db *gorm.DB) *GormMovieRepository {
	return &GormMovieRepository{db: db}
}

// GetByID retrieves a movie by ID.
func (r *GormMovieRepository) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	var model domain.MovieModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMovieNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}
