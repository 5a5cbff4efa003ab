package world

import (
	"math"

	"github.com/kasuganosora/nightwatch/game/ai"
	"github.com/kasuganosora/nightwatch/game/nav"
)

// GridQuery answers line-of-sight and ground queries against a walk grid.
// Blocked cells occlude sight; out-of-bounds counts as blocked.
type GridQuery struct {
	grid nav.Grid
}

// NewGridQuery wraps g.
func NewGridQuery(g nav.Grid) *GridQuery {
	return &GridQuery{grid: g}
}

// RaycastBlocked walks the cells between from and to (clipped to maxDistance
// when positive) and reports whether any of them is not walkable.
func (q *GridQuery) RaycastBlocked(from, to ai.Vec3, maxDistance float64) bool {
	if d := from.Dist(to); maxDistance > 0 && d > maxDistance {
		to = from.Add(to.Sub(from).Scale(maxDistance / d))
	}
	a, b := nav.CellOf(from), nav.CellOf(to)
	blocked := false
	bresenham(a, b, func(c nav.Cell) bool {
		if !q.grid.Walkable(c.X, c.Z) {
			blocked = true
			return false
		}
		return true
	})
	return blocked
}

// bresenham visits every cell on the line from a to b inclusive until visit returns false.
func bresenham(a, b nav.Cell, visit func(nav.Cell) bool) {
	dx := abs(b.X - a.X)
	dz := -abs(b.Z - a.Z)
	sx, sz := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Z > b.Z {
		sz = -1
	}
	err := dx + dz
	x, z := a.X, a.Z
	for {
		if !visit(nav.Cell{X: x, Z: z}) {
			return
		}
		if x == b.X && z == b.Z {
			return
		}
		e2 := 2 * err
		if e2 >= dz {
			err += dz
			x += sx
		}
		if e2 <= dx {
			err += dx
			z += sz
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SampleWalkablePoint returns near if it stands on a walkable cell, otherwise
// the centre of the closest walkable cell within radius.
func (q *GridQuery) SampleWalkablePoint(near ai.Vec3, radius float64) (ai.Vec3, bool) {
	if math.IsNaN(near.X) || math.IsNaN(near.Z) || math.IsInf(near.X, 0) || math.IsInf(near.Z, 0) {
		return ai.Vec3{}, false
	}
	home := nav.CellOf(near)
	if q.grid.Walkable(home.X, home.Z) {
		return near, true
	}
	if radius <= 0 {
		return ai.Vec3{}, false
	}

	span := int(math.Ceil(radius))
	best, bestDist, found := ai.Vec3{}, math.Inf(1), false
	for z := home.Z - span; z <= home.Z+span; z++ {
		for x := home.X - span; x <= home.X+span; x++ {
			if !q.grid.Walkable(x, z) {
				continue
			}
			c := nav.Cell{X: x, Z: z}.Center(near.Y)
			d := c.Flat().Dist(near.Flat())
			if d <= radius && d < bestDist {
				best, bestDist, found = c, d, true
			}
		}
	}
	return best, found
}
