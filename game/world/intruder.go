package world

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kasuganosora/nightwatch/game/ai"
	"github.com/kasuganosora/nightwatch/resource"
)

// ErrInvalidPatch is returned when an intruder update carries out-of-range values.
var ErrInvalidPatch = errors.New("world: invalid intruder patch")

// Intruder is the scripted stand-in for the player. It implements
// ai.TargetSensorSource and ai.Availability and is safe for concurrent use.
type Intruder struct {
	mu        sync.RWMutex
	pos       ai.Vec3
	noise     float64
	light     bool
	concealed bool
	present   bool

	route    []ai.Vec3
	routeIdx int
	speed    float64
	loop     bool
}

// IntruderState is a JSON view of the intruder.
type IntruderState struct {
	Position  ai.Vec3   `json:"position"`
	Noise     float64   `json:"noise"`
	Light     bool      `json:"light"`
	Concealed bool      `json:"concealed"`
	Present   bool      `json:"present"`
	Route     []ai.Vec3 `json:"route,omitempty"`
	RouteIdx  int       `json:"route_index"`
	Speed     float64   `json:"speed"`
}

// IntruderPatch is a partial update; nil fields are left unchanged.
type IntruderPatch struct {
	Position  *ai.Vec3   `json:"position"`
	Noise     *float64   `json:"noise"`
	Light     *bool      `json:"light"`
	Concealed *bool      `json:"concealed"`
	Present   *bool      `json:"present"`
	Route     *[]ai.Vec3 `json:"route"`
	Speed     *float64   `json:"speed"`
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteVec(v ai.Vec3) bool { return finite(v.X) && finite(v.Y) && finite(v.Z) }

// Validate rejects NaN/Inf positions, noise outside [0,1] and negative speed.
func (p IntruderPatch) Validate() error {
	if p.Position != nil && !finiteVec(*p.Position) {
		return fmt.Errorf("%w: position must be finite", ErrInvalidPatch)
	}
	if p.Noise != nil && (!finite(*p.Noise) || *p.Noise < 0 || *p.Noise > 1) {
		return fmt.Errorf("%w: noise must be in [0,1]", ErrInvalidPatch)
	}
	if p.Speed != nil && (!finite(*p.Speed) || *p.Speed < 0) {
		return fmt.Errorf("%w: speed must be >= 0", ErrInvalidPatch)
	}
	if p.Route != nil {
		for i, wp := range *p.Route {
			if !finiteVec(wp) {
				return fmt.Errorf("%w: route point %d must be finite", ErrInvalidPatch, i)
			}
		}
	}
	return nil
}

// NewIntruder builds an intruder from a level setup. A nil setup yields an absent intruder.
func NewIntruder(setup *resource.IntruderSetup) *Intruder {
	if setup == nil {
		return &Intruder{}
	}
	in := &Intruder{
		pos:     pointToVec(setup.Start),
		noise:   setup.Noise,
		light:   setup.Light,
		present: !setup.Absent,
		speed:   setup.Speed,
		loop:    setup.Loop,
	}
	for _, p := range setup.Route {
		in.route = append(in.route, pointToVec(p))
	}
	return in
}

func pointToVec(p resource.Point) ai.Vec3 { return ai.Vec3{X: p.X, Z: p.Z} }

func (in *Intruder) Position() ai.Vec3 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.pos
}

func (in *Intruder) NoiseLevel() float64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.noise
}

func (in *Intruder) IsLightOn() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.light
}

func (in *Intruder) IsConcealed() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.concealed
}

// Available is false while the intruder is out of the level.
func (in *Intruder) Available() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.present
}

// Apply validates and applies p atomically.
func (in *Intruder) Apply(p IntruderPatch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if p.Position != nil {
		in.pos = *p.Position
	}
	if p.Noise != nil {
		in.noise = *p.Noise
	}
	if p.Light != nil {
		in.light = *p.Light
	}
	if p.Concealed != nil {
		in.concealed = *p.Concealed
	}
	if p.Present != nil {
		in.present = *p.Present
	}
	if p.Route != nil {
		in.route = append([]ai.Vec3(nil), (*p.Route)...)
		in.routeIdx = 0
	}
	if p.Speed != nil {
		in.speed = *p.Speed
	}
	return nil
}

// Advance walks the route in straight lines at the intruder's speed.
// A looping route wraps; otherwise the intruder stops at the last point.
func (in *Intruder) Advance(dt time.Duration) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.present || len(in.route) == 0 || dt <= 0 {
		return
	}
	budget := in.speed * dt.Seconds()
	lap := 0.0
	for budget > 0 && in.routeIdx < len(in.route) {
		wp := in.route[in.routeIdx]
		seg := wp.Sub(in.pos)
		d := seg.Len()
		if d > budget {
			in.pos = in.pos.Add(seg.Scale(budget / d))
			return
		}
		in.pos = wp
		budget -= d
		lap += d
		in.routeIdx++
		if in.routeIdx == len(in.route) && in.loop {
			in.routeIdx = 0
			// a degenerate loop never consumes budget
			if lap == 0 {
				return
			}
			lap = 0
		}
	}
}

// State returns a copy of the intruder's current state.
func (in *Intruder) State() IntruderState {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return IntruderState{
		Position:  in.pos,
		Noise:     in.noise,
		Light:     in.light,
		Concealed: in.concealed,
		Present:   in.present,
		Route:     append([]ai.Vec3(nil), in.route...),
		RouteIdx:  in.routeIdx,
		Speed:     in.speed,
	}
}
