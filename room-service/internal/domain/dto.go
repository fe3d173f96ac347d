package domain

// CreateRoomRequest represents a room creation request.
// BroadcastStartTimeType is "now" or a whole number of minutes from now.
type CreateRoomRequest struct {
	Name                   string  `json:"name"`
	Username               string  `json:"username"`
	MovieID                *string `json:"movie_id,omitempty"`
	BroadcastStartTimeType string  `json:"broadcast_start_time_type"`
}

// StateRequest asks for a playback transition.
type StateRequest struct {
	Action   string `json:"action" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// HeartbeatRequest carries the host's local playback position.
type HeartbeatRequest struct {
	Username   string `json:"username" binding:"required"`
	PositionMs int64  `json:"position_ms"`
}

// PresenceRequest identifies the viewer joining or leaving.
type PresenceRequest struct {
	Username string `json:"username" binding:"required"`
}

// Playback actions.
const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionSeek  = "seek"
)

// RoomResponse is the API representation of a room.
type RoomResponse struct {
	ID                     string          `json:"room_id"`
	Name                   string          `json:"name"`
	CreatedBy              string          `json:"created_by"`
	CreatedByName          string          `json:"created_by_name"`
	InviteCode             string          `json:"invite_code"`
	MovieID                *string         `json:"movie_id,omitempty"`
	Movie                  *Movie          `json:"movie,omitempty"`
	CurrentTimeMs          int64           `json:"current_time_ms"`
	CurrentPositionMs      int64           `json:"current_position_ms"`
	PlaybackState          PlaybackState   `json:"playback_state"`
	PlaybackRate           float64         `json:"playback_rate"`
	BroadcastStatus        BroadcastStatus `json:"broadcast_status"`
	BroadcastStartTimeType string          `json:"broadcast_start_time_type"`
	ScheduledStartTime     *int64          `json:"scheduled_start_time,omitempty"`
	ActualStartTime        *int64          `json:"actual_start_time,omitempty"`
	ServerManagedTime      int64           `json:"server_managed_time"`
	ViewerCount            int             `json:"viewer_count"`
	CreatedAt              int64           `json:"created_at"`
	UpdatedAt              int64           `json:"updated_at"`
}

// ToResponse converts a Room to RoomResponse. Position fields are filled by the caller.
func (r *Room) ToResponse() RoomResponse {
	return RoomResponse{
		ID:                     r.ID,
		Name:                   r.Name,
		CreatedBy:              r.CreatedBy,
		CreatedByName:          r.CreatedByName,
		InviteCode:             r.InviteCode,
		MovieID:                r.MovieID,
		CurrentTimeMs:          r.CurrentTimeMs,
		PlaybackState:          r.PlaybackState,
		PlaybackRate:           r.PlaybackRate,
		BroadcastStatus:        r.BroadcastStatus,
		BroadcastStartTimeType: r.BroadcastStartTimeType,
		ScheduledStartTime:     r.ScheduledStartTime,
		ActualStartTime:        r.ActualStartTime,
		ServerManagedTime:      r.ServerManagedTime,
		CreatedAt:              UnixMs(r.CreatedAt),
		UpdatedAt:              UnixMs(r.UpdatedAt),
	}
}

// SyncResponse is the authoritative playback position of a room.
type SyncResponse struct {
	RoomID          string          `json:"room_id"`
	PositionMs      int64           `json:"position_ms"`
	PlaybackState   PlaybackState   `json:"playback_state"`
	PlaybackRate    float64         `json:"playback_rate"`
	BroadcastStatus BroadcastStatus `json:"broadcast_status"`
	ServerTime      int64           `json:"server_time"`
}

// ServerTimeResponse is the clock view a client uses to align its player.
// ServerTime is the computed position; CurrentTime is the server wall clock.
type ServerTimeResponse struct {
	ServerTime         int64           `json:"server_time"`
	CurrentTime        int64           `json:"current_time"`
	BroadcastStatus    BroadcastStatus `json:"broadcast_status"`
	ScheduledStartTime *int64          `json:"scheduled_start_time,omitempty"`
	ActualStartTime    *int64          `json:"actual_start_time,omitempty"`
}

// JoinResult reports the outcome of a presence join.
type JoinResult struct {
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Duplicate bool   `json:"duplicate"`
	Count     int    `json:"viewer_count"`
}
