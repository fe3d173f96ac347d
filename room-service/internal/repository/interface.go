package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrMovieNotFound = errors.New("movie not found")
	ErrUserNotFound  = errors.New("user not found")
)

// RoomPatch is a partial room update. Nil fields are left untouched.
type RoomPatch struct {
	CurrentTimeMs      *int64
	PlaybackState      *domain.PlaybackState
	PlaybackRate       *float64
	BroadcastStatus    *domain.BroadcastStatus
	ActualStartTime    *int64
	ServerManagedTime  *int64
	ScheduledStartTime *int64
}

func (p RoomPatch) fields() map[string]interface{} {
	m := make(map[string]interface{})
	if p.CurrentTimeMs != nil {
		m["current_time_ms"] = *p.CurrentTimeMs
	}
	if p.PlaybackState != nil {
		m["playback_state"] = int(*p.PlaybackState)
	}
	if p.PlaybackRate != nil {
		m["playback_rate"] = *p.PlaybackRate
	}
	if p.BroadcastStatus != nil {
		m["broadcast_status"] = string(*p.BroadcastStatus)
	}
	if p.ActualStartTime != nil {
		m["actual_start_time"] = *p.ActualStartTime
	}
	if p.ServerManagedTime != nil {
		m["server_managed_time"] = *p.ServerManagedTime
	}
	if p.ScheduledStartTime != nil {
		m["scheduled_start_time"] = *p.ScheduledStartTime
	}
	return m
}

// RoomRepository defines the interface for room data persistence.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	Update(ctx context.Context, id string, patch RoomPatch) error
	// UpdateFn loads the row, applies fn and saves it in one transaction.
	// An error from fn aborts the write and is returned unchanged.
	UpdateFn(ctx context.Context, id string, fn func(room *domain.Room) error) (*domain.Room, error)
	// Delete removes the room only when requester owns it.
	Delete(ctx context.Context, id, requester string) (bool, error)
	ListByStatus(ctx context.Context, status domain.BroadcastStatus) ([]domain.Room, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Room, error)
}

// UserRepository persists display-name identities.
type UserRepository interface {
	FirstOrCreate(ctx context.Context, user *domain.UserModel) (*domain.UserModel, error)
	GetByUsername(ctx context.Context, username string) (*domain.UserModel, error)
}

// MovieRepository reads catalog entries.
type MovieRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Movie, error)
}
