package ai

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrMissingCollaborator is returned when a required dependency is nil.
var ErrMissingCollaborator = errors.New("ai: missing collaborator")

// Deps are the collaborators a PursuitController is wired to.
// Body, Navigator and World are required; the rest have defaults.
type Deps struct {
	Body      Body
	Navigator Navigator
	World     WorldQuery
	Target    TargetSensorSource // nil: no target, the controller keeps patrolling
	Events    EventSink          // nil: NopSink
	Rand      RandSource         // nil: time-seeded
	Logger    *zap.Logger        // nil: zap.NewNop()

	// PatrolPoints overrides procedural patrol generation when non-empty.
	PatrolPoints []Vec3
	// Name labels log lines.
	Name string
}

// PursuitController is the perception-and-pursuit state machine of one enemy.
// It is not safe for concurrent use; drive it from a single tick loop.
type PursuitController struct {
	cfg    Config
	body   Body
	nav    Navigator
	world  WorldQuery
	target TargetSensorSource
	events EventSink
	rng    RandSource
	logger *zap.Logger
	name   string

	state         State
	stateElapsed  time.Duration
	timeSinceSeen time.Duration
	lastKnown     Vec3
	hasLastKnown  bool
	// alerted is set once OnTargetDetected fired for the current alert episode.
	alerted bool

	searchPoints []Vec3
	searchIndex  int
	patrolPoints []Vec3
	patrolIndex  int

	dest    Vec3
	hasDest bool

	perception Perception
	ticks      uint64
}

// NewPursuitController validates cfg, wires deps and prepares the patrol route.
func NewPursuitController(cfg Config, deps Deps) (*PursuitController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Body == nil:
		return nil, fmt.Errorf("%w: body", ErrMissingCollaborator)
	case deps.Navigator == nil:
		return nil, fmt.Errorf("%w: navigator", ErrMissingCollaborator)
	case deps.World == nil:
		return nil, fmt.Errorf("%w: world query", ErrMissingCollaborator)
	}

	c := &PursuitController{
		cfg:    cfg,
		body:   deps.Body,
		nav:    deps.Navigator,
		world:  deps.World,
		target: deps.Target,
		events: deps.Events,
		rng:    deps.Rand,
		logger: deps.Logger,
		name:   deps.Name,
		state:  StatePatrolling,
	}
	if c.events == nil {
		c.events = NopSink{}
	}
	if c.rng == nil {
		c.rng = defaultRand()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	if len(deps.PatrolPoints) > 0 {
		c.patrolPoints = append([]Vec3(nil), deps.PatrolPoints...)
	} else {
		c.generatePatrolPoints(c.body.Position())
	}
	if len(c.patrolPoints) == 0 {
		c.logger.Warn("no patrol points, enemy will hold position", zap.String("enemy", c.name))
	}
	return c, nil
}

// Tick advances the controller by dt: sense, check capture, transition, steer.
func (c *PursuitController) Tick(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	c.ticks++
	c.stateElapsed += dt
	c.timeSinceSeen += dt

	p := Sense(c.cfg, c.body.Position(), c.body.Forward(), c.world, c.target)
	c.perception = p
	if p.Seen {
		c.remember(p.TargetPos)
		c.timeSinceSeen = 0
	} else if p.Heard {
		// Heard, not seen: memory moves but the sight timer keeps running.
		c.remember(p.TargetPos)
	}

	if p.Available && p.Distance < c.cfg.AttackRange && !c.target.IsConcealed() {
		c.events.OnTargetCaught()
	}

	c.transition(p)
	c.steer(p)
}

func (c *PursuitController) remember(pos Vec3) {
	c.lastKnown = pos
	c.hasLastKnown = true
}

// transition applies at most one edge per tick. Visual detection takes
// precedence over aural detection.
func (c *PursuitController) transition(p Perception) {
	switch c.state {
	case StatePatrolling:
		switch {
		case p.Seen:
			c.enter(StateHunting)
		case p.Heard:
			c.enter(StateInvestigating)
		}

	case StateInvestigating:
		switch {
		case p.Seen:
			c.enter(StateHunting)
		case c.reached(c.lastKnown) && c.stateElapsed > c.cfg.InvestigateTimeout:
			c.enter(StatePatrolling)
		}

	case StateHunting:
		if c.timeSinceSeen > c.cfg.LoseTargetTime {
			c.enter(StateSearching)
		}

	case StateSearching:
		if p.Seen {
			c.enter(StateHunting)
			return
		}
		if c.searchIndex < len(c.searchPoints) && c.reached(c.searchPoints[c.searchIndex]) {
			c.searchIndex++
		}
		if c.searchIndex >= len(c.searchPoints) || c.stateElapsed > c.cfg.SearchDuration {
			c.enter(StatePatrolling)
		}
	}
}

// enter switches state and runs entry actions.
func (c *PursuitController) enter(next State) {
	prev := c.state
	if prev == next {
		return
	}
	if prev == StateSearching {
		c.searchPoints = nil
		c.searchIndex = 0
	}
	c.state = next
	c.stateElapsed = 0

	c.logger.Debug("pursuit state changed",
		zap.String("enemy", c.name),
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
		zap.Uint64("tick", c.ticks))
	c.events.OnStateChanged(prev, next)

	switch next {
	case StateHunting:
		if !c.alerted {
			c.alerted = true
			c.events.OnTargetDetected()
		}
	case StateSearching:
		c.events.OnTargetLost()
		c.generateSearchPoints()
		if len(c.searchPoints) == 0 {
			c.logger.Debug("no walkable search points, falling back to patrol",
				zap.String("enemy", c.name))
		}
	case StatePatrolling:
		c.alerted = false
	}
}

// steer issues speed and destination for the current state.
func (c *PursuitController) steer(p Perception) {
	switch c.state {
	case StatePatrolling:
		if len(c.patrolPoints) == 0 {
			// Hold position; a stale hunt or search destination must not keep us walking.
			c.nav.SetSpeed(0)
			if c.hasDest {
				c.moveTo(c.body.Position())
			}
			return
		}
		c.nav.SetSpeed(c.cfg.PatrolSpeed)
		if c.reached(c.patrolPoints[c.patrolIndex]) {
			c.patrolIndex = c.nextPatrolIndex()
		}
		c.moveTo(c.patrolPoints[c.patrolIndex])

	case StateInvestigating:
		c.nav.SetSpeed(c.cfg.InvestigateSpeed)
		c.moveTo(c.lastKnown)

	case StateHunting:
		c.nav.SetSpeed(c.cfg.HuntSpeed)
		if p.Seen {
			c.moveTo(p.TargetPos)
		} else {
			c.moveTo(c.lastKnown)
		}

	case StateSearching:
		c.nav.SetSpeed(c.cfg.SearchSpeed)
		if c.searchIndex < len(c.searchPoints) {
			c.moveTo(c.searchPoints[c.searchIndex])
		} else {
			c.moveTo(c.lastKnown)
		}
	}
}

func (c *PursuitController) moveTo(p Vec3) {
	c.nav.SetDestination(p)
	c.dest = p
	c.hasDest = true
}

// reached reports arrival at p, which must be the destination issued earlier.
func (c *PursuitController) reached(p Vec3) bool {
	return c.hasDest && c.dest == p &&
		!c.nav.IsPathPending() &&
		c.nav.RemainingDistance() <= c.cfg.ArriveDistance
}

// SetTarget swaps the sensed target. nil means no target.
func (c *PursuitController) SetTarget(t TargetSensorSource) { c.target = t }

func (c *PursuitController) State() State { return c.state }

func (c *PursuitController) StateElapsed() time.Duration { return c.stateElapsed }

func (c *PursuitController) TimeSinceTargetSeen() time.Duration { return c.timeSinceSeen }

// LastKnownTargetPosition returns the remembered target position; ok is false
// until the target has been sensed once.
func (c *PursuitController) LastKnownTargetPosition() (Vec3, bool) {
	return c.lastKnown, c.hasLastKnown
}

// SearchPoints returns a copy of the pending search route.
func (c *PursuitController) SearchPoints() []Vec3 {
	return append([]Vec3(nil), c.searchPoints...)
}

// PatrolPoints returns a copy of the patrol route.
func (c *PursuitController) PatrolPoints() []Vec3 {
	return append([]Vec3(nil), c.patrolPoints...)
}

// Perception returns the sensory read of the most recent tick.
func (c *PursuitController) Perception() Perception { return c.perception }

// Perceive runs detection against the current target without touching state.
func (c *PursuitController) Perceive() Perception {
	return Sense(c.cfg, c.body.Position(), c.body.Forward(), c.world, c.target)
}

func (c *PursuitController) Config() Config { return c.cfg }

// Snapshot is a read-only view of controller state for debugging surfaces.
type Snapshot struct {
	State           State      `json:"state"`
	StateElapsedMs  int64      `json:"state_elapsed_ms"`
	TimeSinceSeenMs int64      `json:"time_since_seen_ms"`
	LastKnown       *Vec3      `json:"last_known,omitempty"`
	SearchPoints    []Vec3     `json:"search_points,omitempty"`
	SearchIndex     int        `json:"search_index"`
	PatrolPoints    []Vec3     `json:"patrol_points"`
	PatrolIndex     int        `json:"patrol_index"`
	Perception      Perception `json:"perception"`
	Ticks           uint64     `json:"ticks"`
}

func (c *PursuitController) Snapshot() Snapshot {
	s := Snapshot{
		State:           c.state,
		StateElapsedMs:  c.stateElapsed.Milliseconds(),
		TimeSinceSeenMs: c.timeSinceSeen.Milliseconds(),
		SearchPoints:    c.SearchPoints(),
		SearchIndex:     c.searchIndex,
		PatrolPoints:    c.PatrolPoints(),
		PatrolIndex:     c.patrolIndex,
		Perception:      c.perception,
		Ticks:           c.ticks,
	}
	if c.hasLastKnown {
		lk := c.lastKnown
		s.LastKnown = &lk
	}
	return s
}
