package ai

import "math"

// SamplePoints draws count points uniformly from the disc of the given radius
// around center on the ground plane and snaps each to the walkable surface.
// Samples with no walkable projection are dropped, not retried.
func SamplePoints(world WorldQuery, rng RandSource, center Vec3, count int, radius, projection float64) []Vec3 {
	if count <= 0 || world == nil || rng == nil {
		return nil
	}
	points := make([]Vec3, 0, count)
	for i := 0; i < count; i++ {
		// sqrt keeps the density uniform over the disc area.
		r := radius * math.Sqrt(rng.Float64())
		theta := 2 * math.Pi * rng.Float64()
		candidate := Vec3{
			X: center.X + r*math.Cos(theta),
			Y: center.Y,
			Z: center.Z + r*math.Sin(theta),
		}
		if p, ok := world.SampleWalkablePoint(candidate, projection); ok {
			points = append(points, p)
		}
	}
	return points
}

// generateSearchPoints fills the search route around the last known position.
func (c *PursuitController) generateSearchPoints() {
	c.searchPoints = SamplePoints(c.world, c.rng, c.lastKnown, c.cfg.SearchPointCount, c.cfg.SearchRadius, c.cfg.ProjectionRadius)
	c.searchIndex = 0
}

// generatePatrolPoints builds the patrol route around the spawn position.
func (c *PursuitController) generatePatrolPoints(spawn Vec3) {
	c.patrolPoints = SamplePoints(c.world, c.rng, spawn, c.cfg.PatrolPointCount, c.cfg.PatrolRadius, c.cfg.ProjectionRadius)
	c.patrolIndex = 0
}

// nextPatrolIndex picks the patrol point to head for after an arrival.
func (c *PursuitController) nextPatrolIndex() int {
	n := len(c.patrolPoints)
	if n == 0 {
		return 0
	}
	if c.cfg.RandomPatrol {
		return c.rng.IntN(n)
	}
	return (c.patrolIndex + 1) % n
}
