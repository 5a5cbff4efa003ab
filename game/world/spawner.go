package world

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasuganosora/nightwatch/game/ai"
	"github.com/kasuganosora/nightwatch/game/nav"
	"github.com/kasuganosora/nightwatch/resource"
)

// Spawner builds the enemies of a room from its level's spawn list.
type Spawner struct {
	room   *Room
	cfg    ai.Config
	seed   uint64
	logger *zap.Logger
}

// NewSpawner creates a Spawner for room. A zero seed gives time-seeded enemies.
func NewSpawner(room *Room, cfg ai.Config, seed uint64, logger *zap.Logger) *Spawner {
	return &Spawner{room: room, cfg: cfg, seed: seed, logger: logger}
}

// SpawnAll creates one enemy per level spawn. Called once on room creation.
func (sp *Spawner) SpawnAll() ([]*Enemy, error) {
	spawns := sp.room.level.Spawns
	enemies := make([]*Enemy, 0, len(spawns))
	for i, s := range spawns {
		e, err := sp.spawn(i, s)
		if err != nil {
			return nil, err
		}
		enemies = append(enemies, e)
	}
	return enemies, nil
}

// facing converts a yaw in degrees to a ground-plane forward vector (0° is +Z).
func facing(deg float64) ai.Vec3 {
	rad := deg * math.Pi / 180
	return ai.Vec3{X: math.Sin(rad), Z: math.Cos(rad)}
}

func (sp *Spawner) spawn(i int, s resource.Spawn) (*Enemy, error) {
	name := s.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", sp.room.ID, i+1)
	}
	e := &Enemy{ID: uuid.NewString(), Name: name}
	e.nav = nav.NewGridNavigator(sp.room.level.Walk, ai.Vec3{X: s.X, Z: s.Z}, facing(s.FacingDeg))

	cfg := sp.cfg
	if s.RandomPatrol {
		cfg.RandomPatrol = true
	}
	var patrol []ai.Vec3
	for _, p := range s.PatrolPoints {
		patrol = append(patrol, pointToVec(p))
	}
	var rng ai.RandSource
	if sp.seed != 0 {
		rng = ai.NewRand(sp.seed + uint64(i))
	}

	ctl, err := ai.NewPursuitController(cfg, ai.Deps{
		Body:         e.nav,
		Navigator:    e.nav,
		World:        sp.room.query,
		Target:       sp.room.intruder,
		Events:       &enemySink{room: sp.room, enemy: e},
		Rand:         rng,
		Logger:       sp.logger,
		PatrolPoints: patrol,
		Name:         name,
	})
	if err != nil {
		return nil, fmt.Errorf("world: spawn %s in %s: %w", name, sp.room.ID, err)
	}
	e.ctl = ctl
	sp.logger.Debug("enemy spawned",
		zap.String("room", sp.room.ID),
		zap.String("enemy", e.ID),
		zap.String("name", name),
		zap.Int("patrol_points", len(ctl.PatrolPoints())))
	return e, nil
}
