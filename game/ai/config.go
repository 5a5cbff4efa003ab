package ai

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate for out-of-range values.
var ErrInvalidConfig = errors.New("ai: invalid config")

// Config tunes a PursuitController. It is fixed for the controller's lifetime.
type Config struct {
	DetectionRadius     float64 `mapstructure:"detection_radius" json:"detection_radius"`
	FieldOfView         float64 `mapstructure:"field_of_view" json:"field_of_view"` // degrees, full cone
	HearingRadius       float64 `mapstructure:"hearing_radius" json:"hearing_radius"`
	LightDetectionBonus float64 `mapstructure:"light_detection_bonus" json:"light_detection_bonus"`
	NoiseThreshold      float64 `mapstructure:"noise_threshold" json:"noise_threshold"`
	AttackRange         float64 `mapstructure:"attack_range" json:"attack_range"`
	EyeHeight           float64 `mapstructure:"eye_height" json:"eye_height"`
	ArriveDistance      float64 `mapstructure:"arrive_distance" json:"arrive_distance"`

	PatrolSpeed      float64 `mapstructure:"patrol_speed" json:"patrol_speed"`
	InvestigateSpeed float64 `mapstructure:"investigate_speed" json:"investigate_speed"`
	HuntSpeed        float64 `mapstructure:"hunt_speed" json:"hunt_speed"`
	SearchSpeed      float64 `mapstructure:"search_speed" json:"search_speed"`

	InvestigateTimeout time.Duration `mapstructure:"investigate_timeout" json:"investigate_timeout"`
	LoseTargetTime     time.Duration `mapstructure:"lose_target_time" json:"lose_target_time"`
	SearchDuration     time.Duration `mapstructure:"search_duration" json:"search_duration"`

	PatrolPointCount int     `mapstructure:"patrol_point_count" json:"patrol_point_count"`
	PatrolRadius     float64 `mapstructure:"patrol_radius" json:"patrol_radius"`
	RandomPatrol     bool    `mapstructure:"random_patrol" json:"random_patrol"`
	SearchPointCount int     `mapstructure:"search_point_count" json:"search_point_count"`
	SearchRadius     float64 `mapstructure:"search_radius" json:"search_radius"`
	// ProjectionRadius bounds how far a sampled point may move when snapped to the walkable surface.
	ProjectionRadius float64 `mapstructure:"projection_radius" json:"projection_radius"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		DetectionRadius:     15,
		FieldOfView:         120,
		HearingRadius:       10,
		LightDetectionBonus: 5,
		NoiseThreshold:      0.4,
		AttackRange:         1.5,
		EyeHeight:           1.6,
		ArriveDistance:      0.5,

		PatrolSpeed:      2,
		InvestigateSpeed: 3,
		HuntSpeed:        5,
		SearchSpeed:      3,

		InvestigateTimeout: 5 * time.Second,
		LoseTargetTime:     5 * time.Second,
		SearchDuration:     15 * time.Second,

		PatrolPointCount: 5,
		PatrolRadius:     20,
		SearchPointCount: 5,
		SearchRadius:     10,
		ProjectionRadius: 2,
	}
}

// Validate checks every knob for a usable range.
func (c Config) Validate() error {
	nonNeg := []struct {
		name string
		v    float64
	}{
		{"detection_radius", c.DetectionRadius},
		{"hearing_radius", c.HearingRadius},
		{"light_detection_bonus", c.LightDetectionBonus},
		{"attack_range", c.AttackRange},
		{"eye_height", c.EyeHeight},
		{"arrive_distance", c.ArriveDistance},
		{"patrol_speed", c.PatrolSpeed},
		{"investigate_speed", c.InvestigateSpeed},
		{"hunt_speed", c.HuntSpeed},
		{"search_speed", c.SearchSpeed},
		{"patrol_radius", c.PatrolRadius},
		{"search_radius", c.SearchRadius},
		{"projection_radius", c.ProjectionRadius},
	}
	for _, f := range nonNeg {
		if f.v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	if c.FieldOfView <= 0 || c.FieldOfView > 360 {
		return fmt.Errorf("%w: field_of_view must be in (0, 360], got %v", ErrInvalidConfig, c.FieldOfView)
	}
	if c.NoiseThreshold < 0 || c.NoiseThreshold > 1 {
		return fmt.Errorf("%w: noise_threshold must be in [0, 1], got %v", ErrInvalidConfig, c.NoiseThreshold)
	}
	if c.InvestigateTimeout < 0 || c.LoseTargetTime < 0 || c.SearchDuration < 0 {
		return fmt.Errorf("%w: durations must be >= 0", ErrInvalidConfig)
	}
	if c.PatrolPointCount < 0 || c.SearchPointCount < 0 {
		return fmt.Errorf("%w: point counts must be >= 0", ErrInvalidConfig)
	}
	return nil
}
