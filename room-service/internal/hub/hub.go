package hub

import (
	"context"
	"encoding/json"
	"sync"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/room-service/internal/config"
)

// Hub fans room messages out to the subscribers connected to this instance.
// It keeps the latest state snapshot per room and replays it to new
// subscribers.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client // roomID -> clientID -> client
	snapshots  map[string][]byte             // roomID -> latest state message
	register   chan *Client
	unregister chan *Client
	broadcast  chan *RoomMessage
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// RoomMessage is a message to be broadcast to a room.
type RoomMessage struct {
	RoomID  string
	Message []byte
	Close   bool // disconnect the room's subscribers after delivery
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		snapshots:  make(map[string][]byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *RoomMessage, 256),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		config:     cfg,
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	defer close(h.done)
	l := pkglog.L()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if _, ok := h.rooms[client.RoomID]; !ok {
				h.rooms[client.RoomID] = make(map[string]*Client)
			}
			h.rooms[client.RoomID][client.ID] = client
			if snap, ok := h.snapshots[client.RoomID]; ok {
				select {
				case client.Send <- snap:
				default:
				}
			}
			h.mu.Unlock()
			l.Debug().Str(pkglog.FieldClientID, client.ID).Str(pkglog.FieldRoomID, client.RoomID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			removed := h.removeLocked(client)
			h.mu.Unlock()
			if removed {
				l.Debug().Str(pkglog.FieldClientID, client.ID).Msg("client unregistered")
			}

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.quit:
			h.mu.Lock()
			for _, client := range h.clients {
				close(client.Send)
			}
			h.clients = make(map[string]*Client)
			h.rooms = make(map[string]map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) deliver(msg *RoomMessage) {
	var slow []*Client

	h.mu.RLock()
	for _, client := range h.rooms[msg.RoomID] {
		select {
		case client.Send <- msg.Message:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 && !msg.Close {
		return
	}

	l := pkglog.L()
	h.mu.Lock()
	for _, client := range slow {
		if h.removeLocked(client) {
			l.Warn().Str(pkglog.FieldClientID, client.ID).Str(pkglog.FieldRoomID, msg.RoomID).Msg("dropped slow subscriber")
		}
	}
	if msg.Close {
		for _, client := range h.rooms[msg.RoomID] {
			h.removeLocked(client)
		}
		delete(h.snapshots, msg.RoomID)
	}
	h.mu.Unlock()
}

// removeLocked drops client and closes its Send channel. h.mu must be held.
func (h *Hub) removeLocked(client *Client) bool {
	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	if roomClients, ok := h.rooms[client.RoomID]; ok {
		delete(roomClients, client.ID)
		if len(roomClients) == 0 {
			delete(h.rooms, client.RoomID)
		}
	}
	delete(h.clients, client.ID)
	close(client.Send)
	return true
}

// Stop ends Run and closes every subscriber.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Publish marshals message and broadcasts it to the room. A snapshot message
// replaces the room's stored state.
func (h *Hub) Publish(ctx context.Context, roomID string, message interface{}, snapshot bool) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.Deliver(roomID, data, snapshot)
	return nil
}

// Deliver broadcasts pre-encoded data to the room.
func (h *Hub) Deliver(roomID string, data []byte, snapshot bool) {
	if snapshot {
		h.mu.Lock()
		h.snapshots[roomID] = data
		h.mu.Unlock()
	}
	h.enqueue(&RoomMessage{RoomID: roomID, Message: data})
}

// CloseRoom sends data, if any, then disconnects the room's subscribers and
// forgets its snapshot.
func (h *Hub) CloseRoom(roomID string, data []byte) {
	h.enqueue(&RoomMessage{RoomID: roomID, Message: data, Close: true})
}

func (h *Hub) enqueue(msg *RoomMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.quit:
	}
}

func (h *Hub) sendTo(client *Client, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client.ID]; !ok {
		return nil
	}
	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Snapshot returns the latest state message of a room.
func (h *Hub) Snapshot(roomID string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, ok := h.snapshots[roomID]
	return data, ok
}

// RoomClientCount returns the number of subscribers of a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
