package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kasuganosora/nightwatch/plugin/hook"
	"github.com/kasuganosora/nightwatch/resource"
)

// ErrRoomNotFound is returned when no room exists for an ID.
var ErrRoomNotFound = errors.New("world: room not found")

// Metrics summarizes every active room.
type Metrics struct {
	ActiveRooms int                  `json:"active_rooms"`
	Enemies     int                  `json:"enemies"`
	States      map[string]int       `json:"states"`
	Rooms       map[string]RoomStats `json:"rooms"`
	Publisher   *PublisherStats      `json:"publisher,omitempty"`
}

// WorldManager manages all active Room instances, one per level.
type WorldManager struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	res    *resource.Loader
	cfg    RoomConfig
	pub    *EventPublisher
	hooks  *hook.HookCenter
	ctx    context.Context
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewWorldManager creates a new WorldManager. Rooms it starts run until ctx
// is done or StopAll is called. pub and hooks may be nil.
func NewWorldManager(ctx context.Context, res *resource.Loader, cfg RoomConfig, pub *EventPublisher, hooks *hook.HookCenter, logger *zap.Logger) *WorldManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorldManager{
		rooms:  make(map[string]*Room),
		res:    res,
		cfg:    cfg,
		pub:    pub,
		hooks:  hooks,
		ctx:    ctx,
		logger: logger,
	}
}

// GetOrCreate returns the Room for level, creating and starting it if needed.
func (wm *WorldManager) GetOrCreate(level string) (*Room, error) {
	// Fast path: room already exists.
	wm.mu.RLock()
	room, ok := wm.rooms[level]
	wm.mu.RUnlock()
	if ok {
		return room, nil
	}

	wm.mu.Lock()
	defer wm.mu.Unlock()
	if room, ok = wm.rooms[level]; ok {
		return room, nil
	}
	lv := wm.res.Level(level)
	if lv == nil {
		return nil, fmt.Errorf("%w: no level %q", ErrRoomNotFound, level)
	}
	room, err := NewRoom(lv, wm.cfg, wm.pub, wm.logger)
	if err != nil {
		return nil, err
	}
	wm.rooms[level] = room
	if !wm.cfg.Manual {
		wm.wg.Add(1)
		go func() {
			defer wm.wg.Done()
			room.Run(wm.ctx)
		}()
	}
	wm.trigger(hook.OnRoomStarted, room)
	wm.logger.Info("room created",
		zap.String("room", room.ID),
		zap.Int("enemies", len(room.enemies)),
		zap.Duration("tick", room.tick))
	return room, nil
}

// StartAll creates a room for every loaded level.
func (wm *WorldManager) StartAll() error {
	for _, name := range wm.res.Names() {
		if _, err := wm.GetOrCreate(name); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the Room for id.
func (wm *WorldManager) Get(id string) (*Room, error) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	room, ok := wm.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, id)
	}
	return room, nil
}

// List returns active room IDs in sorted order.
func (wm *WorldManager) List() []string {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	ids := make([]string, 0, len(wm.rooms))
	for id := range wm.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Destroy stops and removes the room for id.
func (wm *WorldManager) Destroy(id string) {
	wm.mu.Lock()
	room, ok := wm.rooms[id]
	if ok {
		delete(wm.rooms, id)
	}
	wm.mu.Unlock()
	if ok {
		room.Stop()
		wm.trigger(hook.OnRoomStopped, room)
		wm.logger.Info("room destroyed", zap.String("room", id))
	}
}

// ActiveRoomCount returns the number of active rooms.
func (wm *WorldManager) ActiveRoomCount() int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return len(wm.rooms)
}

// StopAll stops all active rooms and waits for their loops to exit.
func (wm *WorldManager) StopAll() {
	wm.mu.Lock()
	rooms := make([]*Room, 0, len(wm.rooms))
	for _, r := range wm.rooms {
		rooms = append(rooms, r)
	}
	wm.rooms = make(map[string]*Room)
	wm.mu.Unlock()
	for _, r := range rooms {
		r.Stop()
		wm.trigger(hook.OnRoomStopped, r)
	}
	wm.wg.Wait()
}

// Publisher returns the event publisher, or nil.
func (wm *WorldManager) Publisher() *EventPublisher { return wm.pub }

// Metrics aggregates stats over every room.
func (wm *WorldManager) Metrics() Metrics {
	wm.mu.RLock()
	rooms := make([]*Room, 0, len(wm.rooms))
	for _, r := range wm.rooms {
		rooms = append(rooms, r)
	}
	wm.mu.RUnlock()

	m := Metrics{
		ActiveRooms: len(rooms),
		States:      make(map[string]int),
		Rooms:       make(map[string]RoomStats, len(rooms)),
	}
	for _, r := range rooms {
		st := r.Stats()
		m.Rooms[r.ID] = st
		m.Enemies += st.Enemies
		for s, n := range st.States {
			m.States[s] += n
		}
	}
	if wm.pub != nil {
		ps := wm.pub.Stats()
		m.Publisher = &ps
	}
	return m
}

// Report logs a one-line summary per room. Meant for a scheduler ticker.
func (wm *WorldManager) Report(_ context.Context) {
	for id, st := range wm.Metrics().Rooms {
		wm.logger.Info("room report",
			zap.String("room", id),
			zap.Uint64("ticks", st.Ticks),
			zap.Any("states", st.States))
	}
}

func (wm *WorldManager) trigger(event string, room *Room) {
	if wm.hooks == nil {
		return
	}
	if _, err := wm.hooks.Trigger(wm.ctx, event, room.ID); err != nil && !errors.Is(err, hook.ErrInterrupt) {
		wm.logger.Warn("room hook failed", zap.String("event", event), zap.Error(err))
	}
}
