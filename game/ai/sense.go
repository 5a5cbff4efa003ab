package ai

// Perception is one tick's sensory read of the target.
type Perception struct {
	Available bool    `json:"available"`
	Seen      bool    `json:"seen"`
	Heard     bool    `json:"heard"`
	Distance  float64 `json:"distance"`
	TargetPos Vec3    `json:"target_pos"`
}

// Sensed reports whether the target was either seen or heard.
func (p Perception) Sensed() bool { return p.Seen || p.Heard }

// Sense fuses vision and hearing for an observer standing at self and facing forward.
// A missing target yields a zero Perception.
func Sense(cfg Config, self, forward Vec3, world WorldQuery, target TargetSensorSource) Perception {
	if !targetAvailable(target) {
		return Perception{}
	}
	pos := target.Position()
	p := Perception{
		Available: true,
		TargetPos: pos,
		Distance:  self.Dist(pos),
	}
	p.Seen = canSee(cfg, self, forward, world, target, p.Distance)
	p.Heard = canHear(cfg, target, p.Distance)
	return p
}

func canSee(cfg Config, self, forward Vec3, world WorldQuery, target TargetSensorSource, dist float64) bool {
	if target.IsConcealed() {
		return false
	}
	radius := cfg.DetectionRadius
	if target.IsLightOn() {
		radius += cfg.LightDetectionBonus
	}
	if !(dist <= radius) {
		return false
	}
	// Degenerate vectors skip the cone test.
	if angle, ok := AngleBetween(forward, target.Position().Sub(self)); ok && angle > cfg.FieldOfView/2 {
		return false
	}
	eye := self.Add(Vec3{Y: cfg.EyeHeight})
	if world != nil && world.RaycastBlocked(eye, target.Position(), dist) {
		return false
	}
	return true
}

func canHear(cfg Config, target TargetSensorSource, dist float64) bool {
	return dist <= cfg.HearingRadius && target.NoiseLevel() > cfg.NoiseThreshold
}
