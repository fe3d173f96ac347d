// Package position reconstructs where playback currently is in a room from
// the persisted row and the wall clock. It has no side effects.
package position

import (
	"time"

	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
)

// Result is the computed playback position of a room.
type Result struct {
	PositionMs int64
	State      domain.PlaybackState
}

// Calculate returns the authoritative position for room at now.
func Calculate(room *domain.Room, now time.Time) Result {
	nowMs := domain.UnixMs(now)

	switch room.BroadcastStatus {
	case domain.BroadcastScheduled:
		// Rooms past their start time stay at zero until the scheduler promotes them.
		return Result{PositionMs: 0, State: domain.PlaybackStopped}

	case domain.BroadcastEnded:
		return Result{PositionMs: clamp(room.ServerManagedTime), State: domain.PlaybackStopped}

	case domain.BroadcastLive:
		switch room.PlaybackState {
		case domain.PlaybackPlaying:
			return Result{PositionMs: sinceStart(room, nowMs), State: domain.PlaybackPlaying}
		case domain.PlaybackPaused:
			return Result{PositionMs: clamp(room.CurrentTimeMs), State: domain.PlaybackPaused}
		default:
			if room.ServerManagedTime > 0 {
				return Result{PositionMs: room.ServerManagedTime, State: domain.PlaybackStopped}
			}
			return Result{PositionMs: sinceStart(room, nowMs), State: domain.PlaybackStopped}
		}
	}

	return Result{PositionMs: 0, State: domain.PlaybackStopped}
}

// PromotionDue reports whether a scheduled room has reached its start time.
func PromotionDue(room *domain.Room, now time.Time) bool {
	return room.BroadcastStatus == domain.BroadcastScheduled &&
		room.ScheduledStartTime != nil &&
		domain.UnixMs(now) >= *room.ScheduledStartTime
}

// CleanupDue reports whether a live room started more than retention ago.
func CleanupDue(room *domain.Room, now time.Time, retention time.Duration) bool {
	return room.BroadcastStatus == domain.BroadcastLive &&
		room.ActualStartTime != nil &&
		*room.ActualStartTime < domain.UnixMs(now.Add(-retention))
}

func sinceStart(room *domain.Room, nowMs int64) int64 {
	if room.ActualStartTime == nil {
		return 0
	}
	return clamp(nowMs - *room.ActualStartTime)
}

func clamp(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}
