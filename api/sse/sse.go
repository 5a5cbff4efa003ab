package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/nightwatch/cache"
	"github.com/kasuganosora/nightwatch/game/world"
	mw "github.com/kasuganosora/nightwatch/middleware"
)

const defaultKeepAlive = 30 * time.Second

// Handler streams a room's pursuit events as server-sent events.
type Handler struct {
	pubsub    cache.PubSub
	wm        *world.WorldManager
	keepAlive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a new SSE Handler. keepAlive <= 0 uses 30s.
func NewHandler(pubsub cache.PubSub, wm *world.WorldManager, keepAlive time.Duration, logger *zap.Logger) *Handler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pubsub: pubsub, wm: wm, keepAlive: keepAlive, logger: logger}
}

// ServeSSE handles GET /api/rooms/:id/stream?replay=N.
// With replay set, the last N stored events are sent oldest first before
// live events.
func (h *Handler) ServeSSE(c *gin.Context) {
	room, err := h.wm.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, world.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	replay := 0
	if s := c.Query("replay"); s != "" {
		if replay, err = strconv.Atoi(s); err != nil || replay < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid replay"})
			return
		}
	}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	// Subscribe before replaying so nothing published in between is missed.
	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, cache.EventChannel(room.ID))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("room", room.ID), mw.TraceField(c), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"room\":%q}\n\n", room.ID)
	if replay > 0 {
		h.replay(c, room.ID, replay)
	}
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			writeEvent(c, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-room.StopChan():
			fmt.Fprintf(c.Writer, "event: closed\ndata: {\"room\":%q}\n\n", room.ID)
			c.Writer.Flush()
			return

		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Handler) replay(c *gin.Context, room string, n int) {
	pub := h.wm.Publisher()
	if pub == nil {
		return
	}
	events, err := pub.Recent(c.Request.Context(), room, n)
	if err != nil {
		h.logger.Warn("sse replay failed", zap.String("room", room), zap.Error(err))
		return
	}
	for i := len(events) - 1; i >= 0; i-- {
		b, err := json.Marshal(events[i])
		if err != nil {
			continue
		}
		writeEvent(c, string(b))
	}
}

// writeEvent names the SSE event after the pursuit event kind.
func writeEvent(c *gin.Context, payload string) {
	var head struct {
		Kind string `json:"kind"`
	}
	name := "pursuit"
	if json.Unmarshal([]byte(payload), &head) == nil && head.Kind != "" {
		name = head.Kind
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, payload)
}
