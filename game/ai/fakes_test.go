package ai

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeBody struct {
	pos, fwd Vec3
}

func (b *fakeBody) Position() Vec3 { return b.pos }
func (b *fakeBody) Forward() Vec3 { return b.fwd }

// fakeNav records commands and reports a fixed arrival state.
type fakeNav struct {
	speed     float64
	dest      Vec3
	dests     []Vec3
	remaining float64
	pending   bool
}

func (n *fakeNav) SetSpeed(s float64) { n.speed = s }

func (n *fakeNav) SetDestination(p Vec3) {
	if len(n.dests) > 0 && n.dest == p {
		return
	}
	n.dest = p
	n.dests = append(n.dests, p)
}

func (n *fakeNav) RemainingDistance() float64 { return n.remaining }
func (n *fakeNav) IsPathPending() bool { return n.pending }

// fakeWorld is an open plane unless told otherwise.
type fakeWorld struct {
	blocked   bool
	noSurface bool
	rays      int
}

func (w *fakeWorld) RaycastBlocked(_, _ Vec3, _ float64) bool {
	w.rays++
	return w.blocked
}

func (w *fakeWorld) SampleWalkablePoint(near Vec3, _ float64) (Vec3, bool) {
	if w.noSurface {
		return Vec3{}, false
	}
	return near, true
}

type fakeTarget struct {
	pos       Vec3
	noise     float64
	light     bool
	concealed bool
	absent    bool
}

func (t *fakeTarget) Position() Vec3 { return t.pos }
func (t *fakeTarget) NoiseLevel() float64 { return t.noise }
func (t *fakeTarget) IsLightOn() bool { return t.light }
func (t *fakeTarget) IsConcealed() bool { return t.concealed }
func (t *fakeTarget) Available() bool { return !t.absent }

type recordingSink struct {
	events []string
	edges  [][2]State
}

func (s *recordingSink) OnStateChanged(from, to State) {
	s.events = append(s.events, fmt.Sprintf("state:%s->%s", from, to))
	s.edges = append(s.edges, [2]State{from, to})
}
func (s *recordingSink) OnTargetDetected() { s.events = append(s.events, "detected") }
func (s *recordingSink) OnTargetLost() { s.events = append(s.events, "lost") }
func (s *recordingSink) OnTargetCaught() { s.events = append(s.events, "caught") }

func (s *recordingSink) count(name string) int {
	n := 0
	for _, e := range s.events {
		if e == name {
			n++
		}
	}
	return n
}

// rig bundles a controller with its fakes. The enemy stands at the origin facing +Z.
type rig struct {
	c      *PursuitController
	body   *fakeBody
	nav    *fakeNav
	world  *fakeWorld
	target *fakeTarget
	sink   *recordingSink
}

func newRig(t *testing.T, cfg Config, patrol []Vec3) *rig {
	t.Helper()
	r := &rig{
		body:   &fakeBody{fwd: Vec3{Z: 1}},
		nav:    &fakeNav{},
		world:  &fakeWorld{},
		target: &fakeTarget{pos: Vec3{Z: -100}},
		sink:   &recordingSink{},
	}
	c, err := NewPursuitController(cfg, Deps{
		Body:         r.body,
		Navigator:    r.nav,
		World:        r.world,
		Target:       r.target,
		Events:       r.sink,
		Rand:         NewRand(42),
		PatrolPoints: patrol,
		Name:         t.Name(),
	})
	require.NoError(t, err)
	r.c = c
	return r
}

func (r *rig) tick(n int) {
	for i := 0; i < n; i++ {
		r.c.Tick(time.Second)
	}
}

// ahead places the target at distance d, rotated deg degrees off the enemy's forward axis.
func ahead(d, deg float64) Vec3 {
	rad := deg * math.Pi / 180
	return Vec3{X: d * math.Sin(rad), Z: d * math.Cos(rad)}
}

// behind places the target at distance d directly behind the enemy.
func behind(d float64) Vec3 { return Vec3{Z: -d} }
