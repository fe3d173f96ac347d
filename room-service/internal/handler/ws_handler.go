package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/response"
	"github.com/weiawesome/wes-io-live/room-service/internal/config"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/room-service/internal/hub"
	"github.com/weiawesome/wes-io-live/room-service/internal/service"
)

// syncMessage answers an inbound sync.
type syncMessage struct {
	Type string `json:"type"`
	*domain.SyncResponse
}

type pongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// StreamHandler serves the WebSocket and SSE fan-out endpoints.
type StreamHandler struct {
	hub      *hub.Hub
	service  service.RoomService
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(h *hub.Hub, svc service.RoomService, wsCfg config.WebSocketConfig) *StreamHandler {
	return &StreamHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsCfg.ReadBufferSize,
			WriteBufferSize: wsCfg.WriteBufferSize,
			CheckOrigin:     checkOrigin(wsCfg.AllowedOrigins),
		},
	}
}

// RegisterRoutes registers the streaming routes.
func (h *StreamHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/rooms/:id", h.HandleWebSocket)
	r.GET("/api/v1/rooms/:id/events", h.HandleEvents)
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket upgrades the connection and subscribes it to the room.
func (h *StreamHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	roomID := c.Param("id")

	if _, err := h.service.Sync(ctx, roomID); err != nil {
		writeStreamError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), roomID, h.hub, conn, h.wsCfg)
	client.SetDisconnectHandler(h.handleDisconnect)

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *StreamHandler) handleDisconnect(client *hub.Client) {
	_, username := client.Identity()
	if username == "" {
		return
	}
	if err := h.service.Leave(context.Background(), client.RoomID, username); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldClientID, client.ID).Str(log.FieldRoomID, client.RoomID).Msg("failed to leave room on disconnect")
	}
}

func (h *StreamHandler) handleMessage(client *hub.Client, message []byte) {
	var msg domain.InboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		h.reply(client, newErrorMessage(response.CodeBadRequest, "invalid message format"))
		return
	}

	ctx := context.Background()
	roomID := client.RoomID

	switch msg.Type {
	case domain.MsgTypeJoin:
		result, err := h.service.Join(ctx, roomID, msg.Username)
		if err != nil {
			h.replyError(client, err)
			return
		}
		client.SetIdentity(result.UserID, result.Username)
		h.reply(client, &domain.JoinAckMessage{
			Type:        domain.MsgTypeJoinAck,
			RoomID:      roomID,
			UserID:      result.UserID,
			Username:    result.Username,
			Duplicate:   result.Duplicate,
			ViewerCount: result.Count,
			Timestamp:   domain.UnixMs(time.Now()),
		})

	case domain.MsgTypeLeave:
		username := h.username(client, msg.Username)
		if err := h.service.Leave(ctx, roomID, username); err != nil {
			h.replyError(client, err)
			return
		}
		client.SetIdentity("", "")

	case domain.MsgTypeChat:
		payload := msg.Payload
		if payload == nil {
			if err := json.Unmarshal(message, &payload); err != nil {
				h.reply(client, newErrorMessage(response.CodeBadRequest, "invalid chat message"))
				return
			}
			delete(payload, "type")
		}
		if _, err := h.service.Chat(ctx, roomID, payload); err != nil {
			h.replyError(client, err)
		}

	case domain.MsgTypeControl:
		if _, err := h.service.Control(ctx, roomID, h.username(client, msg.Username), msg.Action); err != nil {
			h.replyError(client, err)
		}

	case domain.MsgTypeHeartbeat:
		if _, err := h.service.Heartbeat(ctx, roomID, h.username(client, msg.Username), msg.PositionMs); err != nil {
			h.replyError(client, err)
		}

	case domain.MsgTypeSync:
		state, err := h.service.Sync(ctx, roomID)
		if err != nil {
			h.replyError(client, err)
			return
		}
		h.reply(client, &syncMessage{Type: domain.MsgTypeSync, SyncResponse: state})

	case domain.MsgTypePing:
		h.reply(client, &pongMessage{Type: domain.MsgTypePong, Timestamp: domain.UnixMs(time.Now())})

	default:
		h.reply(client, newErrorMessage(response.CodeBadRequest, "unknown message type"))
	}
}

// username prefers the name in the message and falls back to the joined identity.
func (h *StreamHandler) username(client *hub.Client, fromMsg string) string {
	if fromMsg != "" {
		return fromMsg
	}
	_, username := client.Identity()
	return username
}

func (h *StreamHandler) reply(client *hub.Client, msg interface{}) {
	if err := client.SendMessage(msg); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("failed to reply to client")
	}
}

func (h *StreamHandler) replyError(client *hub.Client, err error) {
	h.reply(client, errorMessageFor(err))
}

func newErrorMessage(code, message string) *domain.ErrorMessage {
	return &domain.ErrorMessage{Type: domain.MsgTypeError, Code: code, Message: message}
}

func errorMessageFor(err error) *domain.ErrorMessage {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return newErrorMessage(response.CodeValidation, verr.Message)
	case errors.Is(err, service.ErrRoomNotFound):
		return newErrorMessage(response.CodeNotFound, "room not found")
	case errors.Is(err, service.ErrNotRoomOwner):
		return newErrorMessage(response.CodeForbidden, service.ErrNotRoomOwner.Error())
	case errors.Is(err, service.ErrRateLimited):
		return newErrorMessage(response.CodeTooManyRequests, err.Error())
	default:
		return newErrorMessage(response.CodeInternal, "internal error")
	}
}

func writeStreamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, "room not found")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldRoomID, c.Param("id")).Msg("failed to open room stream")
		response.InternalError(c, "failed to open room stream")
	}
}
