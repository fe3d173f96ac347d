package domain

import (
	"time"
)

// PlaybackState is the host-driven sub-state of a live room.
type PlaybackState int

const (
	PlaybackStopped PlaybackState = 0
	PlaybackPlaying PlaybackState = 1
	PlaybackPaused  PlaybackState = 2
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	default:
		return "stopped"
	}
}

// BroadcastStatus is the room-level lifecycle stage.
type BroadcastStatus string

const (
	// BroadcastScheduled rooms wait for scheduled_start_time. A zero-minute delay
	// stores a start time equal to creation; the next promotion tick makes it live.
	BroadcastScheduled BroadcastStatus = "scheduled"
	BroadcastLive      BroadcastStatus = "live"
	BroadcastEnded     BroadcastStatus = "ended"
)

// StartNow is the broadcast_start_time_type for rooms that go live on creation.
const StartNow = "now"

// Room is a watch room and its last persisted playback state.
// All *Time fields ending in Ms / Time are epoch milliseconds.
type Room struct {
	ID                     string          `json:"room_id"`
	Name                   string          `json:"name"`
	CreatedBy              string          `json:"created_by"`
	CreatedByName          string          `json:"created_by_name"`
	MovieID                *string         `json:"movie_id,omitempty"`
	InviteCode             string          `json:"invite_code"`
	CurrentTimeMs          int64           `json:"current_time_ms"`
	PlaybackState          PlaybackState   `json:"playback_state"`
	PlaybackRate           float64         `json:"playback_rate"`
	BroadcastStatus        BroadcastStatus `json:"broadcast_status"`
	BroadcastStartTimeType string          `json:"broadcast_start_time_type"`
	ScheduledStartTime     *int64          `json:"scheduled_start_time,omitempty"`
	ActualStartTime        *int64          `json:"actual_start_time,omitempty"`
	ServerManagedTime      int64           `json:"server_managed_time"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// IsOwner reports whether userID created the room.
func (r *Room) IsOwner(userID string) bool {
	return userID != "" && r.CreatedBy == userID
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	c := *r
	if r.MovieID != nil {
		v := *r.MovieID
		c.MovieID = &v
	}
	if r.ScheduledStartTime != nil {
		v := *r.ScheduledStartTime
		c.ScheduledStartTime = &v
	}
	if r.ActualStartTime != nil {
		v := *r.ActualStartTime
		c.ActualStartTime = &v
	}
	return &c
}

// UnixMs converts t to epoch milliseconds.
func UnixMs(t time.Time) int64 {
	return t.UnixMilli()
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
