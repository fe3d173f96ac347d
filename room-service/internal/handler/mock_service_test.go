package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
)

type mockRoomService struct {
	mock.Mock
}

func (m *mockRoomService) CreateRoom(ctx context.Context, req *domain.CreateRoomRequest) (*domain.RoomResponse, error) {
	args := m.Called(ctx, req)
	if r, ok := args.Get(0).(*domain.RoomResponse); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomService) GetRoom(ctx context.Context, roomID string) (*domain.RoomResponse, error) {
	args := m.Called(ctx, roomID)
	if r, ok := args.Get(0).(*domain.RoomResponse); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomService) ListRoomsByOwner(ctx context.Context, username string) ([]domain.RoomResponse, error) {
	args := m.Called(ctx, username)
	if r, ok := args.Get(0).([]domain.RoomResponse); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomService) DeleteRoom(ctx context.Context, roomID, username string) error {
	return m.Called(ctx, roomID, username).Error(0)
}

func (m *mockRoomService) SetPlayback(ctx context.Context, roomID, username, action string) (*domain.SyncResponse, error) {
	args := m.Called(ctx, roomID, username, action)
	return syncResult(args)
}

func (m *mockRoomService) Sync(ctx context.Context, roomID string) (*domain.SyncResponse, error) {
	args := m.Called(ctx, roomID)
	return syncResult(args)
}

func (m *mockRoomService) ServerTime(ctx context.Context, roomID string) (*domain.ServerTimeResponse, error) {
	args := m.Called(ctx, roomID)
	if r, ok := args.Get(0).(*domain.ServerTimeResponse); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomService) Heartbeat(ctx context.Context, roomID, username string, positionMs int64) (*domain.SyncResponse, error) {
	args := m.Called(ctx, roomID, username, positionMs)
	return syncResult(args)
}

func (m *mockRoomService) Join(ctx context.Context, roomID, username string) (*domain.JoinResult, error) {
	args := m.Called(ctx, roomID, username)
	if r, ok := args.Get(0).(*domain.JoinResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomService) Leave(ctx context.Context, roomID, username string) error {
	return m.Called(ctx, roomID, username).Error(0)
}

func (m *mockRoomService) Chat(ctx context.Context, roomID string, payload map[string]interface{}) (map[string]interface{}, error) {
	args := m.Called(ctx, roomID, payload)
	if r, ok := args.Get(0).(map[string]interface{}); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomService) Control(ctx context.Context, roomID, username, action string) (*domain.ControlMessage, error) {
	args := m.Called(ctx, roomID, username, action)
	if r, ok := args.Get(0).(*domain.ControlMessage); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomService) SaveOnEmpty(ctx context.Context, roomID string) {
	m.Called(ctx, roomID)
}

func syncResult(args mock.Arguments) (*domain.SyncResponse, error) {
	if r, ok := args.Get(0).(*domain.SyncResponse); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
