package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create creates a new room. An empty ID is generated.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	if room.ID == "" {
		room.ID = uuid.New().String()
	}

	model := domain.RoomToModel(room)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Msg("failed to create room in db")
		return result.Error
	}

	// Update the domain object with generated timestamps
	room.CreatedAt = model.CreatedAt
	room.UpdatedAt = model.UpdatedAt
	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

// GetByID retrieves a room by ID.
func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	l := log.Ctx(ctx)

	var model domain.RoomModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// Update applies a partial update.
func (r *GormRoomRepository) Update(ctx context.Context, id string, patch RoomPatch) error {
	l := log.Ctx(ctx)

	fields := patch.fields()
	if len(fields) == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return nil
	}

	result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to update room in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// UpdateFn runs a row-locked read-modify-write. SQLite has no row locks; its
// single connection serializes the transaction instead.
func (r *GormRoomRepository) UpdateFn(ctx context.Context, id string, fn func(room *domain.Room) error) (*domain.Room, error) {
	l := log.Ctx(ctx)

	var updated *domain.Room
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model domain.RoomModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		room := model.ToDomain()
		if err := fn(room); err != nil {
			return err
		}
		room.ID = model.ID
		room.CreatedAt = model.CreatedAt

		next := domain.RoomToModel(room)
		if err := tx.Save(next).Error; err != nil {
			return err
		}
		room.UpdatedAt = next.UpdatedAt
		updated = room
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			l.Debug().Err(err).Str(log.FieldRoomID, id).Msg("room update aborted")
		}
		return nil, err
	}
	return updated, nil
}

// Delete deletes a room owned by requester.
func (r *GormRoomRepository) Delete(ctx context.Context, id, requester string) (bool, error) {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).
		Where("id = ? AND created_by = ?", id, requester).
		Delete(&domain.RoomModel{})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to delete room in db")
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	l.Debug().Str(log.FieldRoomID, id).Msg("room deleted in db")
	return true, nil
}

// ListByStatus lists rooms in a broadcast status, oldest first.
func (r *GormRoomRepository) ListByStatus(ctx context.Context, status domain.BroadcastStatus) ([]domain.Room, error) {
	var models []domain.RoomModel
	result := r.db.WithContext(ctx).
		Where("broadcast_status = ?", string(status)).
		Order("created_at ASC").
		Find(&models)
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldBroadcastStatus, string(status)).Msg("failed to list rooms by status")
		return nil, result.Error
	}
	return toRooms(models), nil
}

// ListByOwner retrieves rooms owned by a user, newest first.
func (r *GormRoomRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Room, error) {
	var models []domain.RoomModel
	result := r.db.WithContext(ctx).
		Where("created_by = ?", ownerID).
		Order("created_at DESC").
		Find(&models)
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldUserID, ownerID).Msg("failed to get user rooms from db")
		return nil, result.Error
	}
	return toRooms(models), nil
}

func toRooms(models []domain.RoomModel) []domain.Room {
	rooms := make([]domain.Room, len(models))
	for i, model := range models {
		rooms[i] = *model.ToDomain()
	}
	return rooms
}
