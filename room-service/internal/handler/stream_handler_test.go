package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/pkg/response"
	"github.com/weiawesome/wes-io-live/room-service/internal/config"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/room-service/internal/hub"
	"github.com/weiawesome/wes-io-live/room-service/internal/service"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  16,
		MaxMessageSize:  4096,
		WriteWait:       time.Second,
		PongWait:        5 * time.Second,
		PingInterval:    4 * time.Second,
	}
}

func newStreamServer(t *testing.T, svc service.RoomService) (*httptest.Server, *hub.Hub) {
	t.Helper()
	cfg := testWSConfig()
	h := hub.NewHub(cfg)
	go h.Run()

	r := gin.New()
	NewStreamHandler(h, svc, cfg).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		h.Stop()
	})
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(v))
}

func TestWebSocket_UnknownRoom(t *testing.T) {
	svc := new(mockRoomService)
	svc.On("Sync", mock.Anything, "missing").Return(nil, service.ErrRoomNotFound)
	srv, _ := newStreamServer(t, svc)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocket_JoinAckAndLeaveOnDisconnect(t *testing.T) {
	svc := new(mockRoomService)
	svc.On("Sync", mock.Anything, "r1").Return(&domain.SyncResponse{RoomID: "r1", PositionMs: 1_000}, nil)
	svc.On("Join", mock.Anything, "r1", "bob").Return(&domain.JoinResult{RoomID: "r1", UserID: "u-bob", Username: "bob", Count: 1}, nil).Once()
	svc.On("Join", mock.Anything, "r1", "bob").Return(&domain.JoinResult{RoomID: "r1", UserID: "u-bob", Username: "bob", Duplicate: true, Count: 1}, nil).Once()
	left := make(chan struct{})
	svc.On("Leave", mock.Anything, "r1", "bob").Return(nil).Once().Run(func(mock.Arguments) { close(left) })
	srv, _ := newStreamServer(t, svc)

	conn := dial(t, srv, "r1")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "join", "username": "bob"}))
	var ack domain.JoinAckMessage
	readJSON(t, conn, &ack)
	assert.Equal(t, domain.MsgTypeJoinAck, ack.Type)
	assert.False(t, ack.Duplicate)
	assert.Equal(t, 1, ack.ViewerCount)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "join", "username": "bob"}))
	readJSON(t, conn, &ack)
	assert.True(t, ack.Duplicate)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "sync"}))
	var state struct {
		Type       string `json:"type"`
		PositionMs int64  `json:"position_ms"`
	}
	readJSON(t, conn, &state)
	assert.Equal(t, domain.MsgTypeSync, state.Type)
	assert.Equal(t, int64(1_000), state.PositionMs)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var pong pongMessage
	readJSON(t, conn, &pong)
	assert.Equal(t, domain.MsgTypePong, pong.Type)

	conn.Close()
	select {
	case <-left:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect did not leave the room")
	}
}

func TestWebSocket_ErrorReplies(t *testing.T) {
	svc := new(mockRoomService)
	svc.On("Sync", mock.Anything, "r1").Return(&domain.SyncResponse{RoomID: "r1"}, nil)
	svc.On("Heartbeat", mock.Anything, "r1", "alice", int64(500)).Return(nil, service.ErrRateLimited)
	svc.On("Control", mock.Anything, "r1", "bob", domain.ActionPause).Return(nil, service.ErrNotRoomOwner)
	srv, _ := newStreamServer(t, svc)

	conn := dial(t, srv, "r1")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "heartbeat", "username": "alice", "position_ms": 500}))
	var errMsg domain.ErrorMessage
	readJSON(t, conn, &errMsg)
	assert.Equal(t, domain.MsgTypeError, errMsg.Type)
	assert.Equal(t, response.CodeTooManyRequests, errMsg.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "control", "username": "bob", "action": "pause"}))
	readJSON(t, conn, &errMsg)
	assert.Equal(t, response.CodeForbidden, errMsg.Code)
	assert.Equal(t, "not permitted", errMsg.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	readJSON(t, conn, &errMsg)
	assert.Equal(t, response.CodeBadRequest, errMsg.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	readJSON(t, conn, &errMsg)
	assert.Equal(t, "unknown message type", errMsg.Message)
}

func TestWebSocket_ReceivesRoomFanOut(t *testing.T) {
	svc := new(mockRoomService)
	svc.On("Sync", mock.Anything, "r1").Return(&domain.SyncResponse{RoomID: "r1"}, nil)
	srv, h := newStreamServer(t, svc)

	require.NoError(t, h.Publish(context.Background(), "r1", &domain.StateMessage{Type: domain.MsgTypeState, RoomID: "r1", PositionMs: 42}, true))

	conn := dial(t, srv, "r1")
	var snap domain.StateMessage
	readJSON(t, conn, &snap)
	assert.Equal(t, domain.MsgTypeState, snap.Type)
	assert.Equal(t, int64(42), snap.PositionMs)

	require.NoError(t, h.Publish(context.Background(), "r1", &domain.ControlMessage{Type: domain.MsgTypeControl, RoomID: "r1", Action: "pause"}, false))
	// The snapshot may arrive twice: once replayed, once broadcast.
	var ctrl domain.ControlMessage
	for ctrl.Type != domain.MsgTypeControl {
		readJSON(t, conn, &ctrl)
	}
	assert.Equal(t, "pause", ctrl.Action)
}

func TestSSE_ReplaysSnapshot(t *testing.T) {
	svc := new(mockRoomService)
	svc.On("Sync", mock.Anything, "r1").Return(&domain.SyncResponse{RoomID: "r1"}, nil)
	srv, h := newStreamServer(t, svc)

	require.NoError(t, h.Publish(context.Background(), "r1", &domain.StateMessage{Type: domain.MsgTypeState, RoomID: "r1", PositionMs: 7}, true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/rooms/r1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	assert.Equal(t, domain.MsgTypeState, event)
	assert.Contains(t, data, `"position_ms":7`)

	cancel()
	assert.Eventually(t, func() bool {
		return h.RoomClientCount("r1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSSE_UnknownRoom(t *testing.T) {
	svc := new(mockRoomService)
	svc.On("Sync", mock.Anything, "missing").Return(nil, service.ErrRoomNotFound)
	srv, _ := newStreamServer(t, svc)

	resp, err := http.Get(srv.URL + "/api/v1/rooms/missing/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/rooms/r1", nil)
	req.Header.Set("Origin", "https://watch.example.com")

	assert.True(t, checkOrigin(nil)(req))
	assert.True(t, checkOrigin([]string{"*"})(req))
	assert.True(t, checkOrigin([]string{"https://watch.example.com"})(req))
	assert.False(t, checkOrigin([]string{"https://other.example.com"})(req))
}
