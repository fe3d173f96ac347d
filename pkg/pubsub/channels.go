package pubsub

import "fmt"

// Room fan-out channels. Every instance publishes room deltas on the room's
// channel and relays the pattern into its local subscribers.
const (
	ChannelRoomEvents = "watch:room:%s:events"
	PatternRoomEvents = "watch:room:*:events"
)

// Event types carried on a room channel.
const (
	EventRoomDelta  = "room_delta"
	EventRoomClosed = "room_closed"
)

// RoomEventsChannel returns the channel name for a room's fan-out stream.
func RoomEventsChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomEvents, roomID)
}

// RoomDeltaPayload wraps one fan-out message. Message is the exact JSON the
// subscribers receive; Snapshot marks it as the room's latest state.
type RoomDeltaPayload struct {
	Message  []byte `json:"message"`
	Snapshot bool   `json:"snapshot,omitempty"`
}
