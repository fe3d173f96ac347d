package handler

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/room-service/internal/hub"
)

// HandleEvents streams the room's fan-out as Server-Sent Events. The event
// name is the message type.
func (h *StreamHandler) HandleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	if _, err := h.service.Sync(ctx, roomID); err != nil {
		writeStreamError(c, err)
		return
	}

	client := hub.NewStreamClient(uuid.New().String(), roomID, h.hub, h.wsCfg)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldClientID, client.ID).Str(log.FieldRoomID, roomID).Msg("sse subscriber connected")

	keepalive := h.wsCfg.PingInterval
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case data, ok := <-client.Send:
			if !ok {
				return false
			}
			c.SSEvent(eventName(data), string(data))
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UnixMilli())
			return true
		}
	})
}

func eventName(data []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Type == "" {
		return "message"
	}
	return head.Type
}
