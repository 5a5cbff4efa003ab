package world

import (
	"time"

	"github.com/kasuganosora/nightwatch/game/ai"
	"github.com/kasuganosora/nightwatch/game/nav"
)

// Enemy is the runtime of one guard: its body/navigator and its controller.
type Enemy struct {
	ID   string
	Name string

	nav *nav.GridNavigator
	ctl *ai.PursuitController
}

// EnemySnapshot is the client-visible enemy state.
type EnemySnapshot struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Position ai.Vec3     `json:"position"`
	Forward  ai.Vec3     `json:"forward"`
	Stalled  bool        `json:"stalled"`
	Pursuit  ai.Snapshot `json:"pursuit"`
}

// Controller exposes the enemy's state machine.
func (e *Enemy) Controller() *ai.PursuitController { return e.ctl }

// Navigator exposes the enemy's body and path follower.
func (e *Enemy) Navigator() *nav.GridNavigator { return e.nav }

// step runs one controller tick, then moves the body.
func (e *Enemy) step(dt time.Duration) {
	e.ctl.Tick(dt)
	e.nav.Advance(dt)
}

func (e *Enemy) snapshot() EnemySnapshot {
	return EnemySnapshot{
		ID:       e.ID,
		Name:     e.Name,
		Position: e.nav.Position(),
		Forward:  e.nav.Forward(),
		Stalled:  e.nav.Stalled(),
		Pursuit:  e.ctl.Snapshot(),
	}
}
