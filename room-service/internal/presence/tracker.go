// Package presence tracks which viewer identities are in each room.
package presence

import (
	"context"
	"sort"
	"sync"
)

// EmptyFunc is called when the last viewer leaves a room, before its set is
// discarded. Joins to that room wait until it returns, so it must not call
// back into the Tracker for the same room.
type EmptyFunc func(ctx context.Context, roomID string)

type roomSet struct {
	mu        sync.Mutex
	members   map[string]struct{}
	discarded bool
}

// Tracker holds one presence set per room. Each set has its own lock.
type Tracker struct {
	rooms   sync.Map // roomID -> *roomSet
	onEmpty EmptyFunc
}

// NewTracker creates a Tracker. onEmpty may be nil.
func NewTracker(onEmpty EmptyFunc) *Tracker {
	return &Tracker{onEmpty: onEmpty}
}

// SetOnEmpty replaces the save-on-empty hook. Call before the tracker is shared.
func (t *Tracker) SetOnEmpty(fn EmptyFunc) {
	t.onEmpty = fn
}

// Join adds identity to the room. It returns false without mutating anything
// when identity is already present.
func (t *Tracker) Join(roomID, identity string) bool {
	for {
		v, _ := t.rooms.LoadOrStore(roomID, &roomSet{members: make(map[string]struct{})})
		rs := v.(*roomSet)

		rs.mu.Lock()
		if rs.discarded {
			// Lost a race with the last leave; the map entry is already gone.
			rs.mu.Unlock()
			continue
		}
		if _, ok := rs.members[identity]; ok {
			rs.mu.Unlock()
			return false
		}
		rs.members[identity] = struct{}{}
		rs.mu.Unlock()
		return true
	}
}

// Leave removes identity from the room and reports whether it was present.
// Removing the last identity runs the empty hook and discards the set.
func (t *Tracker) Leave(ctx context.Context, roomID, identity string) bool {
	v, ok := t.rooms.Load(roomID)
	if !ok {
		return false
	}
	rs := v.(*roomSet)

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.discarded {
		return false
	}
	if _, ok := rs.members[identity]; !ok {
		return false
	}
	delete(rs.members, identity)

	if len(rs.members) == 0 {
		if t.onEmpty != nil {
			t.onEmpty(ctx, roomID)
		}
		rs.discarded = true
		t.rooms.CompareAndDelete(roomID, rs)
	}
	return true
}

// Count returns the number of identities in the room.
func (t *Tracker) Count(roomID string) int {
	v, ok := t.rooms.Load(roomID)
	if !ok {
		return 0
	}
	rs := v.(*roomSet)

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.discarded {
		return 0
	}
	return len(rs.members)
}

// Members returns the room's identities in sorted order.
func (t *Tracker) Members(roomID string) []string {
	v, ok := t.rooms.Load(roomID)
	if !ok {
		return nil
	}
	rs := v.(*roomSet)

	rs.mu.Lock()
	members := make([]string, 0, len(rs.members))
	for id := range rs.members {
		members = append(members, id)
	}
	rs.mu.Unlock()

	sort.Strings(members)
	return members
}

// Forget drops the room's set without running the empty hook.
func (t *Tracker) Forget(roomID string) {
	v, ok := t.rooms.LoadAndDelete(roomID)
	if !ok {
		return
	}
	rs := v.(*roomSet)
	rs.mu.Lock()
	rs.discarded = true
	rs.mu.Unlock()
}
