package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kasuganosora/nightwatch/cache"
	"github.com/kasuganosora/nightwatch/game/world"
	mw "github.com/kasuganosora/nightwatch/middleware"
)

// Handler is the Gin handler for GET /ws/rooms/:id. A connection receives
// the room snapshot, then every pursuit event, and may patch the intruder.
type Handler struct {
	wm       *world.WorldManager
	pubsub   cache.PubSub
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket Handler. An empty allowedOrigins permits
// all origins (development only).
func NewHandler(wm *world.WorldManager, ps cache.PubSub, allowedOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		wm:     wm,
		pubsub: ps,
		router: NewRouter(logger),
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	h.router.On("snapshot", h.handleSnapshot)
	h.router.On("intruder_patch", h.handleIntruderPatch)
	h.router.On("ping", h.handlePing)
	return h
}

// ServeWS handles GET /ws/rooms/:id.
func (h *Handler) ServeWS(c *gin.Context) {
	room, err := h.wm.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, world.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", mw.TraceField(c), zap.Error(err))
		return
	}

	s := NewSession(room.ID, conn, h.logger)
	h.logger.Info("observer connected", zap.String("room", room.ID), zap.String("session", s.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgCh, unsub, err := h.pubsub.Subscribe(ctx, cache.EventChannel(room.ID))
	if err != nil {
		h.logger.Error("ws subscribe failed", zap.String("room", room.ID), zap.Error(err))
		s.Close()
		return
	}
	defer unsub()

	s.Send("snapshot", room.Snapshot())
	go h.forward(ctx, s, msgCh, room.StopChan())

	h.readPump(s)
}

// forward relays pub/sub payloads to the session until ctx is done. The
// session is closed when its room stops.
func (h *Handler) forward(ctx context.Context, s *Session, msgCh <-chan *cache.Message, roomStop <-chan struct{}) {
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			s.SendRaw("event", json.RawMessage(msg.Payload))
		case <-roomStop:
			h.logger.Info("room stopped, closing observer", zap.String("room", s.Room), zap.String("session", s.ID))
			s.Close()
			return
		case <-ctx.Done():
			return
		case <-s.Done:
			return
		}
	}
}

// readPump reads messages until the connection closes.
func (h *Handler) readPump(s *Session) {
	defer func() {
		s.Close()
		h.logger.Info("observer disconnected", zap.String("room", s.Room), zap.String("session", s.ID))
	}()

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close", zap.String("session", s.ID), zap.Error(err))
			}
			return
		}
		s.SetReadDeadline()
		h.router.Dispatch(s, raw)
	}
}

func (h *Handler) handleSnapshot(_ context.Context, s *Session, _ json.RawMessage) error {
	room, err := h.wm.Get(s.Room)
	if err != nil {
		return err
	}
	s.Send("snapshot", room.Snapshot())
	return nil
}

func (h *Handler) handleIntruderPatch(ctx context.Context, s *Session, payload json.RawMessage) error {
	var patch world.IntruderPatch
	if err := json.Unmarshal(payload, &patch); err != nil {
		return fmt.Errorf("%w: %v", world.ErrInvalidPatch, err)
	}
	room, err := h.wm.Get(s.Room)
	if err != nil {
		return err
	}
	if err := room.PatchIntruder(patch); err != nil {
		return err
	}
	h.logger.Debug("intruder patched over ws",
		zap.String("room", s.Room),
		zap.String("trace_id", TraceIDFromCtx(ctx)))
	s.Send("intruder", room.Intruder().State())
	return nil
}

func (h *Handler) handlePing(_ context.Context, s *Session, _ json.RawMessage) error {
	s.Send("pong", struct {
		ServerTS int64 `json:"server_ts"`
	}{time.Now().UnixMilli()})
	return nil
}
