package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
)

func TestNewRoomEvent(t *testing.T) {
	movie := "m-1"
	room := &domain.Room{
		ID:              "room-1",
		MovieID:         &movie,
		BroadcastStatus: domain.BroadcastLive,
		PlaybackState:   domain.PlaybackPlaying,
	}
	now := time.UnixMilli(1_700_000_000_000)

	ev := NewRoomEvent(EventBroadcastLive, room, "u-1", 0, now)

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "broadcast_live",
		"room_id": "room-1",
		"user_id": "u-1",
		"broadcast_status": "live",
		"playback_state": 1,
		"position_ms": 0,
		"movie_id": "m-1",
		"timestamp": 1700000000000
	}`, string(data))
}

func TestNoopProducer(t *testing.T) {
	var p Producer = NoopProducer{}
	assert.NoError(t, p.ProduceRoomEvent(context.Background(), &RoomEvent{Type: EventRoomCreated}))
	assert.NoError(t, p.Close())
}

func TestNewConfluentProducer_RequiresBrokers(t *testing.T) {
	_, err := NewConfluentProducer("", "room-events")
	assert.Error(t, err)
}
