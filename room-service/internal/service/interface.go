package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
)

// RoomService is the control gateway: every client-facing room operation.
type RoomService interface {
	CreateRoom(ctx context.Context, req *domain.CreateRoomRequest) (*domain.RoomResponse, error)
	GetRoom(ctx context.Context, roomID string) (*domain.RoomResponse, error)
	ListRoomsByOwner(ctx context.Context, username string) ([]domain.RoomResponse, error)
	DeleteRoom(ctx context.Context, roomID, username string) error

	SetPlayback(ctx context.Context, roomID, username, action string) (*domain.SyncResponse, error)
	Sync(ctx context.Context, roomID string) (*domain.SyncResponse, error)
	ServerTime(ctx context.Context, roomID string) (*domain.ServerTimeResponse, error)
	Heartbeat(ctx context.Context, roomID, username string, positionMs int64) (*domain.SyncResponse, error)

	Join(ctx context.Context, roomID, username string) (*domain.JoinResult, error)
	Leave(ctx context.Context, roomID, username string) error
	Chat(ctx context.Context, roomID string, payload map[string]interface{}) (map[string]interface{}, error)
	// Control relays a control message. Seeks are rejected and fanned out
	// with an error; play and pause go through SetPlayback.
	Control(ctx context.Context, roomID, username, action string) (*domain.ControlMessage, error)

	// SaveOnEmpty persists the computed position of a room whose last viewer left.
	SaveOnEmpty(ctx context.Context, roomID string)
}

// Identity resolves display names to stable user ids.
type Identity interface {
	ResolveOrCreate(ctx context.Context, name string) (string, error)
	Resolve(name string) (string, error)
}

// Catalog looks movies up.
type Catalog interface {
	GetMovie(ctx context.Context, movieID string) (*domain.Movie, error)
}

// Presence tracks viewer identities per room.
type Presence interface {
	Join(roomID, identity string) bool
	Leave(ctx context.Context, roomID, identity string) bool
	Count(roomID string) int
	Forget(roomID string)
}

// RateLimiter throttles heartbeats per room.
type RateLimiter interface {
	Allow(roomID string, now time.Time) bool
	Forget(roomID string)
}
