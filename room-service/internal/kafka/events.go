// Package kafka publishes room lifecycle events for downstream consumers.
package kafka

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
)

// Room lifecycle event types.
const (
	EventRoomCreated     = "room_created"
	EventRoomDeleted     = "room_deleted"
	EventBroadcastLive   = "broadcast_live"
	EventBroadcastEnded  = "broadcast_ended"
	EventPlaybackChanged = "playback_changed"
)

// RoomEvent is one lifecycle transition of a room.
type RoomEvent struct {
	Type            string                 `json:"type"`
	RoomID          string                 `json:"room_id"`
	UserID          string                 `json:"user_id,omitempty"`
	BroadcastStatus domain.BroadcastStatus `json:"broadcast_status"`
	PlaybackState   domain.PlaybackState   `json:"playback_state"`
	PositionMs      int64                  `json:"position_ms"`
	MovieID         *string                `json:"movie_id,omitempty"`
	Timestamp       int64                  `json:"timestamp"`
}

// NewRoomEvent builds an event from the room's state at now.
func NewRoomEvent(eventType string, room *domain.Room, userID string, positionMs int64, now time.Time) *RoomEvent {
	return &RoomEvent{
		Type:            eventType,
		RoomID:          room.ID,
		UserID:          userID,
		BroadcastStatus: room.BroadcastStatus,
		PlaybackState:   room.PlaybackState,
		PositionMs:      positionMs,
		MovieID:         room.MovieID,
		Timestamp:       domain.UnixMs(now),
	}
}

// Producer publishes room lifecycle events.
type Producer interface {
	ProduceRoomEvent(ctx context.Context, event *RoomEvent) error
	Close() error
}

// NoopProducer drops every event. Used when no brokers are configured.
type NoopProducer struct{}

func (NoopProducer) ProduceRoomEvent(ctx context.Context, event *RoomEvent) error { return nil }

func (NoopProducer) Close() error { return nil }
