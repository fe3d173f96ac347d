package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/pkg/pubsub"
)

// memPubSub delivers every published event to all pattern subscribers.
type memPubSub struct {
	mu         sync.Mutex
	subs       []chan *pubsub.Event
	published  []string
	publishErr error
}

func (m *memPubSub) Publish(ctx context.Context, channel string, event *pubsub.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, channel)
	for _, ch := range m.subs {
		ch <- event
	}
	return nil
}

func (m *memPubSub) Subscribe(ctx context.Context, channel string) (<-chan *pubsub.Event, error) {
	return m.SubscribePattern(ctx, channel)
}

func (m *memPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *pubsub.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *pubsub.Event, 16)
	m.subs = append(m.subs, ch)
	return ch, nil
}

func (m *memPubSub) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (m *memPubSub) Close() error { return nil }

type delivery struct {
	roomID   string
	data     string
	snapshot bool
	closed   bool
}

type recordingLocal struct {
	mu  sync.Mutex
	got []delivery
}

func (r *recordingLocal) Deliver(roomID string, data []byte, snapshot bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, delivery{roomID: roomID, data: string(data), snapshot: snapshot})
}

func (r *recordingLocal) CloseRoom(roomID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, delivery{roomID: roomID, data: string(data), closed: true})
}

func (r *recordingLocal) deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]delivery, len(r.got))
	copy(out, r.got)
	return out
}

func TestRelay_PublishRoundTrip(t *testing.T) {
	ps := &memPubSub{}
	local := &recordingLocal{}
	r := New(ps, local, "instance-a")

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, "room-1", map[string]string{"type": "state"}, true))
	require.NoError(t, r.CloseRoom(ctx, "room-1", map[string]string{"type": "room_closed"}))

	require.Eventually(t, func() bool { return len(local.deliveries()) == 2 }, time.Second, 5*time.Millisecond)

	got := local.deliveries()
	assert.Equal(t, "room-1", got[0].roomID)
	assert.JSONEq(t, `{"type":"state"}`, got[0].data)
	assert.True(t, got[0].snapshot)
	assert.True(t, got[1].closed)
	assert.JSONEq(t, `{"type":"room_closed"}`, got[1].data)

	assert.Equal(t, []string{"watch:room:room-1:events", "watch:room:room-1:events"}, ps.published)
}

func TestRelay_IgnoresMalformedEvents(t *testing.T) {
	ps := &memPubSub{}
	local := &recordingLocal{}
	r := New(ps, local, "instance-a")
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	ctx := context.Background()
	require.NoError(t, ps.Publish(ctx, "watch:room:room-1:events", &pubsub.Event{
		Type:    pubsub.EventRoomDelta,
		RoomID:  "room-1",
		Payload: json.RawMessage(`"not an object"`),
	}))
	require.NoError(t, ps.Publish(ctx, "watch:room:room-1:events", &pubsub.Event{
		Type:    "something_else",
		RoomID:  "room-1",
		Payload: json.RawMessage(`{}`),
	}))
	require.NoError(t, r.Publish(ctx, "room-1", map[string]int{"seq": 1}, false))

	require.Eventually(t, func() bool { return len(local.deliveries()) == 1 }, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"seq":1}`, local.deliveries()[0].data)
}

func TestRelay_PublishError(t *testing.T) {
	ps := &memPubSub{publishErr: errors.New("broker down")}
	r := New(ps, &recordingLocal{}, "instance-a")

	err := r.Publish(context.Background(), "room-1", map[string]int{"seq": 1}, false)
	assert.ErrorIs(t, err, ps.publishErr)
}

func TestRelay_StopWithoutStart(t *testing.T) {
	r := New(&memPubSub{}, &recordingLocal{}, "instance-a")
	r.Stop()
}

func TestLocalBroadcaster(t *testing.T) {
	local := &recordingLocal{}
	b := NewLocal(local)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "room-1", map[string]string{"type": "chat"}, false))
	require.NoError(t, b.CloseRoom(ctx, "room-1", map[string]string{"type": "room_closed"}))

	got := local.deliveries()
	require.Len(t, got, 2)
	assert.False(t, got[0].snapshot)
	assert.True(t, got[1].closed)

	err := b.Publish(ctx, "room-1", make(chan int), false)
	assert.Error(t, err)
}
