// Package relay carries room fan-out messages between instances. Every
// instance publishes on the room's channel and delivers what it receives on
// the room pattern into its local hub, its own messages included.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/pubsub"
)

// Local is the instance-local fan-out the relay delivers into.
type Local interface {
	Deliver(roomID string, data []byte, snapshot bool)
	CloseRoom(roomID string, data []byte)
}

// Broadcaster sends typed messages to every subscriber of a room.
type Broadcaster interface {
	Publish(ctx context.Context, roomID string, message interface{}, snapshot bool) error
	// CloseRoom sends message and then disconnects the room's subscribers.
	CloseRoom(ctx context.Context, roomID string, message interface{}) error
}

// LocalBroadcaster delivers straight into the local hub. Used when no pub/sub
// backend is configured.
type LocalBroadcaster struct {
	local Local
}

// NewLocal creates a LocalBroadcaster.
func NewLocal(local Local) *LocalBroadcaster {
	return &LocalBroadcaster{local: local}
}

func (b *LocalBroadcaster) Publish(ctx context.Context, roomID string, message interface{}, snapshot bool) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal room message: %w", err)
	}
	b.local.Deliver(roomID, data, snapshot)
	return nil
}

func (b *LocalBroadcaster) CloseRoom(ctx context.Context, roomID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal room message: %w", err)
	}
	b.local.CloseRoom(roomID, data)
	return nil
}

// Relay publishes room messages on the event bus and relays the bus into the
// local hub.
type Relay struct {
	ps     pubsub.PubSub
	local  Local
	source string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Relay. source identifies this instance on published events.
func New(ps pubsub.PubSub, local Local, source string) *Relay {
	return &Relay{
		ps:     ps,
		local:  local,
		source: source,
	}
}

// Start subscribes to every room channel.
func (r *Relay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	eventCh, err := r.ps.SubscribePattern(ctx, pubsub.PatternRoomEvents)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to room events: %w", err)
	}

	r.mu.Lock()
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.handleEvents(ctx, eventCh, done)

	l := log.L()
	l.Info().Str("pattern", pubsub.PatternRoomEvents).Msg("room relay started")
	return nil
}

// Stop cancels the subscription and waits for the relay loop to exit.
func (r *Relay) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Relay) handleEvents(ctx context.Context, eventCh <-chan *pubsub.Event, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			r.processEvent(event)
		}
	}
}

func (r *Relay) processEvent(event *pubsub.Event) {
	l := log.L()

	var payload pubsub.RoomDeltaPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		l.Warn().Err(err).Str(log.FieldRoomID, event.RoomID).Msg("failed to unmarshal room event")
		return
	}

	switch event.Type {
	case pubsub.EventRoomDelta:
		r.local.Deliver(event.RoomID, payload.Message, payload.Snapshot)
	case pubsub.EventRoomClosed:
		r.local.CloseRoom(event.RoomID, payload.Message)
	default:
		l.Debug().Str("type", event.Type).Msg("ignoring unknown room event")
	}
}

func (r *Relay) Publish(ctx context.Context, roomID string, message interface{}, snapshot bool) error {
	return r.publish(ctx, pubsub.EventRoomDelta, roomID, message, snapshot)
}

func (r *Relay) CloseRoom(ctx context.Context, roomID string, message interface{}) error {
	return r.publish(ctx, pubsub.EventRoomClosed, roomID, message, false)
}

func (r *Relay) publish(ctx context.Context, eventType, roomID string, message interface{}, snapshot bool) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal room message: %w", err)
	}

	event, err := pubsub.NewEvent(eventType, roomID, pubsub.RoomDeltaPayload{Message: data, Snapshot: snapshot})
	if err != nil {
		return err
	}
	event.Source = r.source

	if err := r.ps.Publish(ctx, pubsub.RoomEventsChannel(roomID), event); err != nil {
		return fmt.Errorf("failed to publish room event: %w", err)
	}
	return nil
}
