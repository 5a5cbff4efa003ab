package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for level files that are neither YAML nor JSON.
var ErrUnknownFormat = errors.New("resource: unknown level format")

// ErrInvalidLevel is returned when a level fails validation.
var ErrInvalidLevel = errors.New("resource: invalid level")

// ---- Level Data Structures ----

// Point is a ground-plane position.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Z float64 `yaml:"z" json:"z"`
}

// Spawn places one enemy.
type Spawn struct {
	Name string  `yaml:"name" json:"name"`
	X    float64 `yaml:"x" json:"x"`
	Z    float64 `yaml:"z" json:"z"`

	// FacingDeg is the yaw in degrees; 0 faces +Z, 90 faces +X.
	FacingDeg    float64 `yaml:"facing_deg" json:"facing_deg"`
	PatrolPoints []Point `yaml:"patrol_points" json:"patrol_points"`
	RandomPatrol bool    `yaml:"random_patrol" json:"random_patrol"`
}

// IntruderSetup configures the player stand-in.
type IntruderSetup struct {
	Start Point   `yaml:"start" json:"start"`
	Route []Point `yaml:"route" json:"route"`
	Speed float64 `yaml:"speed" json:"speed"`
	Loop  bool    `yaml:"loop" json:"loop"`
	Noise float64 `yaml:"noise" json:"noise"`
	Light bool    `yaml:"light" json:"light"`

	// Absent intruders start out of the level.
	Absent bool `yaml:"absent" json:"absent"`
}

// Level is one playable area.
type Level struct {
	Name     string         `yaml:"name" json:"name"`
	Rows     []string       `yaml:"rows" json:"rows"`
	Spawns   []Spawn        `yaml:"spawns" json:"spawns"`
	Intruder *IntruderSetup `yaml:"intruder" json:"intruder"`

	Walk *WalkMap `yaml:"-" json:"-"`
}

// Validate checks the level and builds its WalkMap.
func (l *Level) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidLevel)
	}
	if len(l.Rows) == 0 {
		return fmt.Errorf("%w: %s: no rows", ErrInvalidLevel, l.Name)
	}
	l.Walk = ParseWalkMap(l.Rows)
	for i, s := range l.Spawns {
		if !l.Walk.Walkable(cell(s.X), cell(s.Z)) {
			return fmt.Errorf("%w: %s: spawn %d (%s) on blocked cell", ErrInvalidLevel, l.Name, i, s.Name)
		}
	}
	if in := l.Intruder; in != nil {
		if in.Speed < 0 || in.Noise < 0 || in.Noise > 1 {
			return fmt.Errorf("%w: %s: intruder speed/noise out of range", ErrInvalidLevel, l.Name)
		}
	}
	return nil
}

func cell(v float64) int { return int(math.Floor(v)) }

// ---- Loader ----

// Loader reads level files from a directory.
type Loader struct {
	Dir    string
	Levels map[string]*Level
}

// NewLoader creates a Loader for the given level directory.
func NewLoader(dir string) *Loader {
	return &Loader{
		Dir:    dir,
		Levels: make(map[string]*Level),
	}
}

// Load reads every .yaml, .yml and .json file in Dir.
func (l *Loader) Load() error {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return fmt.Errorf("resource: readdir %s: %w", l.Dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		lv, err := LoadLevelFile(filepath.Join(l.Dir, e.Name()))
		if err != nil {
			return err
		}
		if _, dup := l.Levels[lv.Name]; dup {
			return fmt.Errorf("%w: duplicate level name %q", ErrInvalidLevel, lv.Name)
		}
		l.Levels[lv.Name] = lv
	}
	return nil
}

// Names returns level names in sorted order.
func (l *Loader) Names() []string {
	names := make([]string, 0, len(l.Levels))
	for n := range l.Levels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Level returns the named level or nil.
func (l *Loader) Level(name string) *Level {
	return l.Levels[name]
}

// LoadLevelFile reads and validates one level file.
func LoadLevelFile(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: read %s: %w", path, err)
	}
	lv, err := ParseLevel(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("resource: parse %s: %w", path, err)
	}
	if lv.Name == "" {
		lv.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := lv.Validate(); err != nil {
		return nil, err
	}
	return lv, nil
}

// ParseLevel decodes a level; ext selects the format (".yaml", ".yml", ".json").
func ParseLevel(data []byte, ext string) (*Level, error) {
	lv := &Level{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, lv); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(data, lv); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	return lv, nil
}
