package nav

import (
	"time"

	"github.com/kasuganosora/nightwatch/game/ai"
)

// GridNavigator moves an agent along A* paths over a Grid.
// It implements ai.Navigator and ai.Body. Not safe for concurrent use.
type GridNavigator struct {
	grid    Grid
	pos     ai.Vec3
	forward ai.Vec3
	speed   float64

	dest    ai.Vec3
	hasDest bool
	pending bool
	stalled bool
	path    []ai.Vec3 // remaining waypoints, last one is dest

	plans int
}

// NewGridNavigator places an agent at pos facing forward.
func NewGridNavigator(g Grid, pos, forward ai.Vec3) *GridNavigator {
	if f, ok := forward.Flat().Normalize(); ok {
		forward = f
	} else {
		forward = ai.Vec3{Z: 1}
	}
	return &GridNavigator{grid: g, pos: pos, forward: forward}
}

func (n *GridNavigator) Position() ai.Vec3 { return n.pos }

func (n *GridNavigator) Forward() ai.Vec3 { return n.forward }

func (n *GridNavigator) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	n.speed = speed
}

// SetDestination requests a path to p. Repeating the current destination is a no-op.
func (n *GridNavigator) SetDestination(p ai.Vec3) {
	if n.hasDest && n.dest == p {
		return
	}
	n.dest = p
	n.hasDest = true
	n.pending = true
}

// IsPathPending is true between SetDestination and the next Advance.
func (n *GridNavigator) IsPathPending() bool { return n.pending }

// RemainingDistance is the path length left to the destination.
// A stalled (unreachable) request reports 0.
func (n *GridNavigator) RemainingDistance() float64 {
	if !n.hasDest || n.stalled {
		return 0
	}
	if n.pending {
		return n.pos.Dist(n.dest)
	}
	total, at := 0.0, n.pos
	for _, wp := range n.path {
		total += at.Dist(wp)
		at = wp
	}
	return total
}

// Stalled reports whether the last destination could not be reached.
func (n *GridNavigator) Stalled() bool { return n.stalled }

// Destination returns the current destination, if any.
func (n *GridNavigator) Destination() (ai.Vec3, bool) { return n.dest, n.hasDest }

// Plans counts path computations; a repeated destination does not add one.
func (n *GridNavigator) Plans() int { return n.plans }

// Advance plans any pending request, then moves up to speed*dt along the path.
func (n *GridNavigator) Advance(dt time.Duration) {
	if n.pending {
		n.plan()
	}
	budget := n.speed * dt.Seconds()
	for budget > 0 && len(n.path) > 0 {
		seg := n.path[0].Sub(n.pos)
		d := seg.Len()
		if dir, ok := seg.Flat().Normalize(); ok {
			n.forward = dir
		}
		if d <= budget {
			n.pos = n.path[0]
			n.path = n.path[1:]
			budget -= d
			continue
		}
		n.pos = n.pos.Add(seg.Scale(budget / d))
		budget = 0
	}
}

func (n *GridNavigator) plan() {
	n.pending = false
	n.plans++
	cells := AStar(n.grid, CellOf(n.pos), CellOf(n.dest))
	if cells == nil {
		n.path = nil
		n.stalled = true
		return
	}
	n.stalled = false
	n.path = make([]ai.Vec3, 0, len(cells)+1)
	for i, c := range cells {
		if i == len(cells)-1 {
			break
		}
		n.path = append(n.path, c.Center(n.pos.Y))
	}
	n.path = append(n.path, n.dest)
}
