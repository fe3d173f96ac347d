// Package ratelimit throttles host heartbeats per room.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RoomLimiter admits at most one event per interval for each room.
type RoomLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// NewRoomLimiter creates a RoomLimiter.
func NewRoomLimiter(interval time.Duration) *RoomLimiter {
	return &RoomLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Allow reports whether an event for roomID at now is admitted. Rejected
// events are not queued.
func (rl *RoomLimiter) Allow(roomID string, now time.Time) bool {
	if rl.interval <= 0 {
		return true
	}

	rl.mu.Lock()
	l, ok := rl.limiters[roomID]
	if !ok {
		l = rate.NewLimiter(rate.Every(rl.interval), 1)
		rl.limiters[roomID] = l
	}
	rl.mu.Unlock()

	return l.AllowN(now, 1)
}

// Forget drops the room's limiter.
func (rl *RoomLimiter) Forget(roomID string) {
	rl.mu.Lock()
	delete(rl.limiters, roomID)
	rl.mu.Unlock()
}

// Len returns the number of tracked rooms.
func (rl *RoomLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
