package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/nightwatch/game/world"
	mw "github.com/kasuganosora/nightwatch/middleware"
)

const (
	defaultEventLimit = 50
	maxStepTicks      = 1000
)

// RoomHandler serves room state and intruder control.
type RoomHandler struct {
	wm     *world.WorldManager
	logger *zap.Logger
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(wm *world.WorldManager, logger *zap.Logger) *RoomHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomHandler{wm: wm, logger: logger}
}

// Register mounts the room routes on g.
func (h *RoomHandler) Register(g *gin.RouterGroup) {
	g.GET("/rooms", h.List)
	g.GET("/rooms/:id", h.Detail)
	g.GET("/rooms/:id/events", h.Events)
	g.PATCH("/rooms/:id/intruder", h.PatchIntruder)
	g.POST("/rooms/:id/step", h.Step)
}

func (h *RoomHandler) room(c *gin.Context) (*world.Room, bool) {
	room, err := h.wm.Get(c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, world.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return nil, false
	}
	return room, true
}

// List returns the active rooms with their state counts.
// GET /api/rooms
func (h *RoomHandler) List(c *gin.Context) {
	type roomInfo struct {
		ID string `json:"id"`
		world.RoomStats
	}
	ids := h.wm.List()
	rooms := make([]roomInfo, 0, len(ids))
	for _, id := range ids {
		room, err := h.wm.Get(id)
		if err != nil {
			continue // destroyed since List
		}
		rooms = append(rooms, roomInfo{ID: id, RoomStats: room.Stats()})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}

// Detail returns a full snapshot of one room.
// GET /api/rooms/:id
func (h *RoomHandler) Detail(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, room.Snapshot())
}

// Events returns the most recent events for a room, newest first.
// GET /api/rooms/:id/events?limit=N
func (h *RoomHandler) Events(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}
	pub := h.wm.Publisher()
	if pub == nil {
		c.JSON(http.StatusOK, gin.H{"events": []world.Event{}})
		return
	}
	limit := defaultEventLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	events, err := pub.Recent(c.Request.Context(), room.ID, limit)
	if err != nil {
		h.logger.Error("load event history", zap.String("room", room.ID), mw.TraceField(c), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// PatchIntruder updates the intruder between ticks.
// PATCH /api/rooms/:id/intruder
func (h *RoomHandler) PatchIntruder(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}
	var patch world.IntruderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := room.PatchIntruder(patch); err != nil {
		if errors.Is(err, world.ErrInvalidPatch) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Debug("intruder patched", zap.String("room", room.ID), mw.TraceField(c))
	c.JSON(http.StatusOK, room.Intruder().State())
}

// Step advances a room that is not running its own loop.
// POST /api/rooms/:id/step {"ticks": N}
func (h *RoomHandler) Step(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}
	if room.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "room is running"})
		return
	}
	var req struct {
		Ticks int `json:"ticks"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if req.Ticks == 0 {
		req.Ticks = 1
	}
	if req.Ticks < 0 || req.Ticks > maxStepTicks {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticks out of range"})
		return
	}
	for range req.Ticks {
		room.Step(room.Tick())
	}
	c.JSON(http.StatusOK, room.Snapshot())
}
