package ai

import (
	"math/rand/v2"
	"time"
)

// State enumerates the pursuit states of an enemy.
type State int

const (
	StatePatrolling State = iota
	StateInvestigating
	StateHunting
	StateSearching
)

var stateNames = [...]string{"patrolling", "investigating", "hunting", "searching"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Valid reports whether s is one of the four defined states.
func (s State) Valid() bool { return s >= StatePatrolling && s <= StateSearching }

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Body reports the pose of the agent the controller drives.
type Body interface {
	Position() Vec3
	Forward() Vec3
}

// Navigator plans and executes movement over the walkable surface.
// Implementations treat a repeated SetDestination with the same point as a no-op.
type Navigator interface {
	SetSpeed(speed float64)
	SetDestination(p Vec3)
	RemainingDistance() float64
	IsPathPending() bool
}

// WorldQuery answers geometric questions about the level.
// Declared here as an interface so the controller never depends on world geometry.
type WorldQuery interface {
	// RaycastBlocked reports whether the segment from→to is occluded within maxDistance.
	RaycastBlocked(from, to Vec3, maxDistance float64) bool
	// SampleWalkablePoint projects near onto the closest walkable point within radius.
	SampleWalkablePoint(near Vec3, radius float64) (Vec3, bool)
}

// TargetSensorSource is a read-only view of the pursued agent.
type TargetSensorSource interface {
	Position() Vec3
	NoiseLevel() float64 // 0..1
	IsLightOn() bool
	IsConcealed() bool
}

// Availability is optionally implemented by a TargetSensorSource that can
// temporarily have no valid agent behind it.
type Availability interface {
	Available() bool
}

// RandSource is the random stream used for point sampling.
// *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns a deterministic source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func defaultRand() RandSource {
	return NewRand(uint64(time.Now().UnixNano()))
}

func targetAvailable(t TargetSensorSource) bool {
	if t == nil {
		return false
	}
	if a, ok := t.(Availability); ok {
		return a.Available()
	}
	return true
}
