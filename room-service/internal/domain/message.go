package domain

// Fan-out and WebSocket message types.
const (
	MsgTypeState     = "state"
	MsgTypeControl   = "control"
	MsgTypeChat      = "chat"
	MsgTypeUserJoin  = "user_join"
	MsgTypeUserLeave = "user_leave"
	MsgTypeJoinAck   = "join_ack"
	MsgTypeSync      = "sync"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"
	MsgTypeClosed    = "room_closed"

	// Inbound only.
	MsgTypeJoin      = "join"
	MsgTypeLeave     = "leave"
	MsgTypeHeartbeat = "heartbeat"
	MsgTypePing      = "ping"
)

// ErrSeekDisabled is the error text attached to rejected seek controls.
const ErrSeekDisabled = "seeking is disabled in broadcast mode"

// InboundMessage is a message received from a WebSocket client.
type InboundMessage struct {
	Type       string                 `json:"type"`
	Username   string                 `json:"username,omitempty"`
	Action     string                 `json:"action,omitempty"`
	PositionMs int64                  `json:"position_ms,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// StateMessage carries the room's authoritative playback state.
type StateMessage struct {
	Type            string          `json:"type"`
	RoomID          string          `json:"room_id"`
	BroadcastStatus BroadcastStatus `json:"broadcast_status"`
	PlaybackState   PlaybackState   `json:"playback_state"`
	PlaybackRate    float64         `json:"playback_rate"`
	PositionMs      int64           `json:"position_ms"`
	ActualStartTime *int64          `json:"actual_start_time,omitempty"`
	MovieID         *string         `json:"movie_id,omitempty"`
	Timestamp       int64           `json:"timestamp"`
}

// ControlMessage is a host control relayed to viewers. Error is set when the
// control was rejected.
type ControlMessage struct {
	Type       string `json:"type"`
	RoomID     string `json:"room_id"`
	Action     string `json:"action"`
	Username   string `json:"username,omitempty"`
	PositionMs int64  `json:"position_ms"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// PresenceMessage announces a viewer joining or leaving.
type PresenceMessage struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	ViewerCount int    `json:"viewer_count"`
	Timestamp   int64  `json:"timestamp"`
}

// JoinAckMessage is sent back to the joining client only.
type JoinAckMessage struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Duplicate   bool   `json:"duplicate"`
	ViewerCount int    `json:"viewer_count"`
	Timestamp   int64  `json:"timestamp"`
}

// RoomClosedMessage is the last message subscribers of a deleted room receive.
type RoomClosedMessage struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorMessage reports a failed inbound WebSocket message.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChatMessage stamps an opaque chat payload with its type, room and timestamp.
// The caller's payload is not modified.
func ChatMessage(roomID string, payload map[string]interface{}, ts int64) map[string]interface{} {
	msg := make(map[string]interface{}, len(payload)+3)
	for k, v := range payload {
		msg[k] = v
	}
	msg["type"] = MsgTypeChat
	msg["room_id"] = roomID
	msg["timestamp"] = ts
	return msg
}
