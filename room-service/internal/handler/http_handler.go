package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/response"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/room-service/internal/service"
)

// Handler handles HTTP requests for room service.
type Handler struct {
	roomService service.RoomService
}

// NewHandler creates a new HTTP handler.
func NewHandler(roomService service.RoomService) *Handler {
	return &Handler{roomService: roomService}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		rooms := api.Group("/rooms")
		{
			rooms.POST("", h.CreateRoom)
			rooms.GET("/user/:username", h.ListUserRooms)
			rooms.GET("/:id", h.GetRoom)
			rooms.DELETE("/:id", h.DeleteRoom)

			rooms.POST("/:id/state", h.SetState)
			rooms.GET("/:id/sync", h.Sync)
			rooms.GET("/:id/server-time", h.ServerTime)
			rooms.POST("/:id/heartbeat", h.Heartbeat)

			rooms.POST("/:id/join", h.Join)
			rooms.POST("/:id/leave", h.Leave)
			rooms.POST("/:id/chat", h.Chat)
			rooms.POST("/:id/control", h.Control)
		}
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// CreateRoom creates a new room.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(ctx, &req)
	if err != nil {
		h.writeError(c, err, "failed to create room")
		return
	}

	response.Created(c, room)
}

// GetRoom retrieves a room by ID.
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to get room")
		return
	}

	response.Success(c, room)
}

// ListUserRooms lists the rooms a display name owns.
func (h *Handler) ListUserRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRoomsByOwner(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err, "failed to list rooms")
		return
	}

	response.Success(c, gin.H{"rooms": rooms, "total": len(rooms)})
}

// DeleteRoom deletes a room. Only its owner may do so.
func (h *Handler) DeleteRoom(c *gin.Context) {
	roomID := c.Param("id")
	if err := h.roomService.DeleteRoom(c.Request.Context(), roomID, c.Query("username")); err != nil {
		h.writeError(c, err, "failed to delete room")
		return
	}

	response.Success(c, gin.H{"room_id": roomID, "deleted": true})
}

// SetState plays or pauses a room.
func (h *Handler) SetState(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.StateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	state, err := h.roomService.SetPlayback(ctx, c.Param("id"), req.Username, req.Action)
	if err != nil {
		h.writeError(c, err, "failed to update playback")
		return
	}

	response.Success(c, state)
}

// Sync returns the authoritative playback position.
func (h *Handler) Sync(c *gin.Context) {
	state, err := h.roomService.Sync(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to sync room")
		return
	}

	response.Success(c, state)
}

// ServerTime returns the room's clock view.
func (h *Handler) ServerTime(c *gin.Context) {
	st, err := h.roomService.ServerTime(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to get server time")
		return
	}

	response.Success(c, st)
}

// Heartbeat records the host's playback position.
func (h *Handler) Heartbeat(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	state, err := h.roomService.Heartbeat(ctx, c.Param("id"), req.Username, req.PositionMs)
	if err != nil {
		h.writeError(c, err, "failed to record heartbeat")
		return
	}

	response.Success(c, state)
}

// Join adds a viewer to a room.
func (h *Handler) Join(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.roomService.Join(ctx, c.Param("id"), req.Username)
	if err != nil {
		h.writeError(c, err, "failed to join room")
		return
	}

	response.Success(c, result)
}

// Leave removes a viewer from a room.
func (h *Handler) Leave(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	var req domain.PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.roomService.Leave(ctx, roomID, req.Username); err != nil {
		h.writeError(c, err, "failed to leave room")
		return
	}

	response.Success(c, gin.H{"room_id": roomID, "username": req.Username})
}

// Chat fans out an opaque chat payload.
func (h *Handler) Chat(c *gin.Context) {
	ctx := c.Request.Context()

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.roomService.Chat(ctx, c.Param("id"), payload)
	if err != nil {
		h.writeError(c, err, "failed to send chat message")
		return
	}

	response.Success(c, msg)
}

// Control relays a control action. Seeks come back with an error field.
func (h *Handler) Control(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.StateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.roomService.Control(ctx, c.Param("id"), req.Username, req.Action)
	if err != nil {
		h.writeError(c, err, "failed to relay control")
		return
	}

	response.Success(c, msg)
}

// writeError maps service errors onto response envelopes.
func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		response.ValidationError(c, verr.Message)
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, "room not found")
	case errors.Is(err, service.ErrMovieNotFound):
		response.NotFound(c, "movie not found")
	case errors.Is(err, service.ErrNotRoomOwner):
		response.Forbidden(c, service.ErrNotRoomOwner.Error())
	case errors.Is(err, service.ErrRateLimited):
		response.TooManyRequests(c, err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldRoomID, c.Param("id")).Msg(msg)
		response.InternalError(c, msg)
	}
}
