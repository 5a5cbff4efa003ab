package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kasuganosora/nightwatch/game/ai"
	"github.com/kasuganosora/nightwatch/resource"
)

const defaultTick = 50 * time.Millisecond // 20 TPS

// RoomConfig holds per-room simulation settings.
type RoomConfig struct {
	Tick    time.Duration
	Pursuit ai.Config
	// Seed makes point generation reproducible; 0 seeds from time.
	Seed uint64
	// Manual rooms are not started by the WorldManager; callers drive Step.
	Manual bool
}

// RoomSnapshot is the client-visible state of a room.
type RoomSnapshot struct {
	ID       string          `json:"id"`
	Level    string          `json:"level"`
	Ticks    uint64          `json:"ticks"`
	Running  bool            `json:"running"`
	Rows     []string        `json:"rows"`
	Intruder IntruderState   `json:"intruder"`
	Enemies  []EnemySnapshot `json:"enemies"`
}

// RoomStats summarizes a room for metrics.
type RoomStats struct {
	Ticks   uint64              `json:"ticks"`
	Enemies int                 `json:"enemies"`
	States  map[string]int      `json:"states"`
	Events  map[EventKind]int64 `json:"events"`
}

type eventCounts map[EventKind]int64

func (c eventCounts) add(k EventKind) { c[k]++ }

// Room runs one level: an intruder and its enemies on a shared tick loop.
type Room struct {
	ID string

	level    *resource.Level
	query    *GridQuery
	intruder *Intruder
	enemies  []*Enemy
	pub      *EventPublisher
	tick     time.Duration

	mu       sync.Mutex // guards tick state below and all enemy state
	ticks    uint64
	counters eventCounts

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewRoom builds a room for level and spawns its enemies. pub may be nil.
func NewRoom(level *resource.Level, cfg RoomConfig, pub *EventPublisher, logger *zap.Logger) (*Room, error) {
	if level == nil || level.Walk == nil {
		return nil, errors.New("world: level is not loaded")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	room := &Room{
		ID:       level.Name,
		level:    level,
		query:    NewGridQuery(level.Walk),
		intruder: NewIntruder(level.Intruder),
		pub:      pub,
		tick:     cfg.Tick,
		counters: make(eventCounts),
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
	enemies, err := NewSpawner(room, cfg.Pursuit, cfg.Seed, logger).SpawnAll()
	if err != nil {
		return nil, err
	}
	room.enemies = enemies
	return room, nil
}

// Step advances the room by dt: the intruder moves, then every enemy senses,
// decides and moves.
func (room *Room) Step(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	room.ticks++
	room.intruder.Advance(dt)
	for _, e := range room.enemies {
		e.step(dt)
	}
}

// Run drives Step at the room's tick rate until ctx is done or Stop is called.
func (room *Room) Run(ctx context.Context) {
	if !room.running.CompareAndSwap(false, true) {
		return
	}
	defer room.running.Store(false)

	ticker := time.NewTicker(room.tick)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			room.Step(now.Sub(last))
			last = now
		case <-ctx.Done():
			return
		case <-room.stopCh:
			return
		}
	}
}

// Stop signals the tick loop to exit.
func (room *Room) Stop() {
	room.stopOnce.Do(func() { close(room.stopCh) })
}

// StopChan returns a channel that is closed when this room is stopped.
func (room *Room) StopChan() <-chan struct{} {
	return room.stopCh
}

// Tick returns the room's tick interval.
func (room *Room) Tick() time.Duration { return room.tick }

// Running reports whether Run is active.
func (room *Room) Running() bool { return room.running.Load() }

// Intruder returns the room's intruder.
func (room *Room) Intruder() *Intruder { return room.intruder }

// PatchIntruder applies p between ticks.
func (room *Room) PatchIntruder(p IntruderPatch) error {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.intruder.Apply(p)
}

// Enemies returns the room's enemies. Callers must not tick them.
func (room *Room) Enemies() []*Enemy {
	return append([]*Enemy(nil), room.enemies...)
}

// Snapshot returns a consistent view of the room between ticks.
func (room *Room) Snapshot() RoomSnapshot {
	room.mu.Lock()
	defer room.mu.Unlock()
	snap := RoomSnapshot{
		ID:       room.ID,
		Level:    room.level.Name,
		Ticks:    room.ticks,
		Running:  room.Running(),
		Rows:     room.level.Walk.Rows(),
		Intruder: room.intruder.State(),
		Enemies:  make([]EnemySnapshot, 0, len(room.enemies)),
	}
	for _, e := range room.enemies {
		snap.Enemies = append(snap.Enemies, e.snapshot())
	}
	return snap
}

// Stats returns tick and state counters.
func (room *Room) Stats() RoomStats {
	room.mu.Lock()
	defer room.mu.Unlock()
	st := RoomStats{
		Ticks:   room.ticks,
		Enemies: len(room.enemies),
		States:  make(map[string]int),
		Events:  make(map[EventKind]int64, len(room.counters)),
	}
	for _, e := range room.enemies {
		st.States[e.ctl.State().String()]++
	}
	for k, v := range room.counters {
		st.Events[k] = v
	}
	return st
}
